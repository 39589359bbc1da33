package log

const (
	KeyAppName       = "app"
	KeyRequestID     = "requestId"
	KeyProcess       = "process"
	KeyTag           = "tag"
	KeyConfig        = "config"
	KeyCartID        = "cartId"
	KeyCartState     = "cartState"
	KeyPaymentID     = "paymentId"
	KeyPaymentState  = "paymentState"
	KeyTransactionID = "transactionId"
	KeyGateway       = "gateway"
	KeyOldState      = "oldState"
	KeyNewState      = "newState"
	KeyAmount        = "amount"
	KeyEventKind     = "eventKind"
	KeyDbURL         = "dbUrl"
	KeyChannel       = "channel"
	KeyRequestBody   = "requestBody"
	KeyRequestHost   = "host"
	KeyRequestIp     = "requesterIP"
	KeyRequestMethod = "requestMethod"
	KeyRequestURI    = "requestURI"
	KeyRequestURL    = "requestURL"
	KeyTraceID       = "traceId"
	KeySpanID        = "spanId"
)
