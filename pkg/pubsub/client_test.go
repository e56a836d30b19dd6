package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foodmart/foodmart-backend/pkg/config"
)

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "foodmart-prod"}
	assert.Equal(t, "projects/foodmart-prod/topics/fm-settlement-events", c.topicResourceName("fm-settlement-events"))
	assert.Equal(t, "projects/other/topics/x", c.topicResourceName("projects/other/topics/x"))
	assert.Equal(t, "projects/foodmart-prod/subscriptions/fm-analytics-worker", c.subscriptionResourceName(" fm-analytics-worker "))
	assert.Empty(t, c.subscriptionResourceName(""))
	assert.Empty(t, (&Client{}).topicResourceName("t"))
}

func TestSubscriptionNamesSkipsBlank(t *testing.T) {
	names := subscriptionNames(config.PubSubConfig{NotificationSubscription: "fm-notification-worker", AnalyticsSubscription: "  "})
	assert.Equal(t, []string{"fm-notification-worker"}, names)
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("x"))
	assert.Nil(t, c.Subscription("x"))
	assert.NoError(t, c.Close())
	assert.Error(t, c.Ping(t.Context()))
}
