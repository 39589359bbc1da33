package constants

const (
	APP_MAIN_HIICART      = "main hiicart"
	APP_CHECKOUT_SERVICE  = "checkout-service"
	APP_RECURRING_SWEEPER = "recurring-sweeper"
)

const (
	CHANNEL_CART_STATE_CHANGED    = "cart-state-changed"
	CHANNEL_PAYMENT_STATE_CHANGED = "payment-state-changed"
)
