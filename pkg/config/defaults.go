package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "smartdorm"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 8 * 1024 * 1024 // slips travel base64-encoded in the JSON body

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultWaterRate    = 19.0
	DefaultElectricRate = 7.0
	DefaultServiceFee   = 50.0
	DefaultFinePerDay   = 50.0
	DefaultBillDueDay   = 5

	DefaultTimeZone        = "Asia/Bangkok"
	DefaultAdminRecipient  = "admin"
	DefaultOverdueSchedule = "0 9 * * *"
	DefaultOverdueWorkers  = 8

	DefaultNotifyTransport = NotifyTransportLog
	DefaultNotifyQueueSize = 256
	DefaultNotifyWorkers   = 2
	DefaultNotifyTopic     = "dorm.notifications"
	DefaultNotifyDLQTopic  = "dorm.notifications.dlq"
	DefaultNotifyGroupID   = "dorm-notifier"

	DefaultTwilioChannel = "sms"
)

const (
	NotifyTransportLog   = "log"
	NotifyTransportKafka = "kafka"
)
