package rabbitmq

// Exchange обменник уведомлений.
const Exchange = "notifications"

// Ключи маршрутизации уведомлений.
const (
	RoutingPasswordReset        = "password_reset"
	RoutingSubscriptionCanceled = "subscription_canceled"
)

// Очереди уведомлений.
const (
	QueuePasswordReset        = "password_reset_queue"
	QueueSubscriptionCanceled = "subscription_canceled_queue"
)

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые обслуживает отправитель писем.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueuePasswordReset, RoutingKey: RoutingPasswordReset},
		{QueueName: QueueSubscriptionCanceled, RoutingKey: RoutingSubscriptionCanceled},
	}
}
