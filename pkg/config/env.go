package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvWaterRate       = "RATE_WATER_PER_UNIT"
	EnvElectricRate    = "RATE_ELECTRIC_PER_UNIT"
	EnvServiceFee      = "RATE_SERVICE_FEE"
	EnvFinePerDay      = "RATE_FINE_PER_DAY"
	EnvBillDueDay      = "BILL_DUE_DAY"
	EnvTimeZone        = "TIME_ZONE"
	EnvAdminRecipient  = "ADMIN_RECIPIENT_ID"
	EnvAdminPhone      = "ADMIN_PHONE"
	EnvPublicBaseURL   = "PUBLIC_BASE_URL"
	EnvOverdueSchedule = "OVERDUE_SCHEDULE"
	EnvOverdueWorkers  = "OVERDUE_WORKERS"

	EnvNotifyTransport = "NOTIFY_TRANSPORT"
	EnvNotifyQueueSize = "NOTIFY_QUEUE_SIZE"
	EnvNotifyWorkers   = "NOTIFY_WORKERS"
	EnvNotifyTopic     = "NOTIFY_TOPIC"
	EnvNotifyDLQTopic  = "NOTIFY_DLQ_TOPIC"
	EnvNotifyGroupID   = "NOTIFY_GROUP_ID"

	EnvTwilioAccountSID = "TWILIO_ACCOUNT_SID"
	EnvTwilioAuthToken  = "TWILIO_AUTH_TOKEN"
	EnvTwilioFromNumber = "TWILIO_PHONE_NUMBER"
	EnvTwilioChannel    = "TWILIO_CHANNEL"

	EnvOSSEndpoint      = "ALI_OSS_ENDPOINT"
	EnvOSSAccessKey     = "ALI_OSS_ACCESS_KEY"
	EnvOSSSecretKey     = "ALI_OSS_SECRET_KEY"
	EnvOSSBucket        = "ALI_OSS_BUCKET"
	EnvOSSPublicBaseURL = "ALI_OSS_PUBLIC_BASE_URL"

	EnvGoogleClientID = "GOOGLE_CLIENT_ID"
)
