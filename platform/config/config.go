// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// CRMConfig provides settings for the referral-manager CRM client.
type CRMConfig interface {
	GetCRMUsername() string
	GetCRMPassword() string
	GetMediaSecEmail() string
	GetMissionID() int
	GetCRMLoginBaseURL() string
	GetCRMIdentityBaseURL() string
	GetCRMBaseURL() string
	GetCRMTimeout() time.Duration
	GetAssumeSubmitSuccess() bool
}

// WhatsAppConfig provides settings for the WhatsApp Cloud API template channel.
type WhatsAppConfig interface {
	GetWhatsAppAccessToken() string
	GetWhatsAppPhoneNumberID() string
	GetWhatsAppGraphBaseURL() string
	GetWhatsAppConfirmTemplate() string
	GetWhatsAppAlertTemplate() string
	GetWhatsAppLocale() string
	GetWhatsAppConfirmReferrer() bool
	IsWhatsAppEnabled() bool
}

// SMSConfig provides settings for the SMS fallback channel.
type SMSConfig interface {
	GetSMSAccountSID() string
	GetSMSAuthToken() string
	GetSMSFromNumber() string
	GetSMSAPIBaseURL() string
	GetSMSRegion() string
	GetSMSConfirmReferrer() bool
	IsSMSEnabled() bool
}

// NotifyConfig combines the settings needed to select a messaging channel
// and post to the outbound webhook.
type NotifyConfig interface {
	WhatsAppConfig
	SMSConfig
	GetOutboundWebhookURL() string
	GetSiteHost() string
}

// LeadAdsConfig provides settings for the lead-ads inbound webhook.
type LeadAdsConfig interface {
	GetLeadAdsVerifyToken() string
	GetLeadAdsAccessToken() string
	GetGraphBaseURL() string
}

// AdInfoConfig provides settings for the ad-information lookup service.
type AdInfoConfig interface {
	GetAdInfoURL() string
	IsAdInfoEnabled() bool
}

// SchedulerConfig provides settings for the asynq task queue and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSweepInterval() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// FormMapping maps logical referral fields to raw form field ids.
// Resolved once during normalization; core logic never sees raw keys.
type FormMapping struct {
	Name        string
	Phone       string
	Email       string
	Zip         string
	Road        string
	HouseNumber string
	City        string
	State       string
	UTM         string
}

// FormConfig provides intake form settings.
type FormConfig interface {
	GetFormMapping() FormMapping
	GetDefaultReferralType() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	CORSAllowAll bool
	CORSOrigins  []string

	CRMUsername         string
	CRMPassword         string
	MediaSecEmail       string
	MissionID           int
	CRMLoginBaseURL     string
	CRMIdentityBaseURL  string
	CRMBaseURL          string
	CRMTimeout          time.Duration
	AssumeSubmitSuccess bool

	WhatsAppAccessToken     string
	WhatsAppPhoneNumberID   string
	WhatsAppGraphBaseURL    string
	WhatsAppConfirmTemplate string
	WhatsAppAlertTemplate   string
	WhatsAppLocale          string
	WhatsAppConfirmReferrer bool

	SMSAccountSID      string
	SMSAuthToken       string
	SMSFromNumber      string
	SMSAPIBaseURL      string
	SMSRegion          string
	SMSConfirmReferrer bool

	OutboundWebhookURL string
	SiteHost           string

	LeadAdsVerifyToken string
	LeadAdsAccessToken string
	GraphBaseURL       string

	AdInfoEnabled bool
	AdInfoURL     string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	SweepInterval    time.Duration

	FormFieldMapping    FormMapping
	DefaultReferralType int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// CRMConfig implementation
func (c *Config) GetCRMUsername() string        { return c.CRMUsername }
func (c *Config) GetCRMPassword() string        { return c.CRMPassword }
func (c *Config) GetMediaSecEmail() string      { return c.MediaSecEmail }
func (c *Config) GetMissionID() int             { return c.MissionID }
func (c *Config) GetCRMLoginBaseURL() string    { return c.CRMLoginBaseURL }
func (c *Config) GetCRMIdentityBaseURL() string { return c.CRMIdentityBaseURL }
func (c *Config) GetCRMBaseURL() string         { return c.CRMBaseURL }
func (c *Config) GetCRMTimeout() time.Duration  { return c.CRMTimeout }
func (c *Config) GetAssumeSubmitSuccess() bool  { return c.AssumeSubmitSuccess }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppAccessToken() string     { return c.WhatsAppAccessToken }
func (c *Config) GetWhatsAppPhoneNumberID() string   { return c.WhatsAppPhoneNumberID }
func (c *Config) GetWhatsAppGraphBaseURL() string    { return c.WhatsAppGraphBaseURL }
func (c *Config) GetWhatsAppConfirmTemplate() string { return c.WhatsAppConfirmTemplate }
func (c *Config) GetWhatsAppAlertTemplate() string   { return c.WhatsAppAlertTemplate }
func (c *Config) GetWhatsAppLocale() string          { return c.WhatsAppLocale }
func (c *Config) GetWhatsAppConfirmReferrer() bool   { return c.WhatsAppConfirmReferrer }
func (c *Config) IsWhatsAppEnabled() bool {
	return c.WhatsAppAccessToken != "" && c.WhatsAppPhoneNumberID != ""
}

// SMSConfig implementation
func (c *Config) GetSMSAccountSID() string    { return c.SMSAccountSID }
func (c *Config) GetSMSAuthToken() string     { return c.SMSAuthToken }
func (c *Config) GetSMSFromNumber() string    { return c.SMSFromNumber }
func (c *Config) GetSMSAPIBaseURL() string    { return c.SMSAPIBaseURL }
func (c *Config) GetSMSRegion() string        { return c.SMSRegion }
func (c *Config) GetSMSConfirmReferrer() bool { return c.SMSConfirmReferrer }
func (c *Config) IsSMSEnabled() bool {
	return c.SMSAccountSID != "" && c.SMSAuthToken != "" && c.SMSFromNumber != ""
}

// NotifyConfig implementation
func (c *Config) GetOutboundWebhookURL() string { return c.OutboundWebhookURL }
func (c *Config) GetSiteHost() string           { return c.SiteHost }

// LeadAdsConfig implementation
func (c *Config) GetLeadAdsVerifyToken() string { return c.LeadAdsVerifyToken }
func (c *Config) GetLeadAdsAccessToken() string { return c.LeadAdsAccessToken }
func (c *Config) GetGraphBaseURL() string       { return c.GraphBaseURL }

// AdInfoConfig implementation
func (c *Config) GetAdInfoURL() string { return c.AdInfoURL }
func (c *Config) IsAdInfoEnabled() bool {
	return c.AdInfoEnabled && c.AdInfoURL != ""
}

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string             { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool       { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string       { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int        { return c.AsynqConcurrency }
func (c *Config) GetSweepInterval() time.Duration { return c.SweepInterval }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// FormConfig implementation
func (c *Config) GetFormMapping() FormMapping { return c.FormFieldMapping }
func (c *Config) GetDefaultReferralType() int { return c.DefaultReferralType }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		CORSAllowAll: corsAllowAll,
		CORSOrigins:  corsOrigins,

		CRMUsername:         getEnv("CRM_USERNAME", ""),
		CRMPassword:         getEnv("CRM_PASSWORD", ""),
		MediaSecEmail:       getEnv("MEDIA_SEC_EMAIL", ""),
		MissionID:           mustInt(getEnv("MISSION_ID", "0")),
		CRMLoginBaseURL:     getEnv("CRM_LOGIN_BASE_URL", "https://www.churchofjesuschrist.org"),
		CRMIdentityBaseURL:  getEnv("CRM_IDENTITY_BASE_URL", "https://id.churchofjesuschrist.org"),
		CRMBaseURL:          getEnv("CRM_BASE_URL", "https://referralmanager.churchofjesuschrist.org"),
		CRMTimeout:          mustDuration(getEnv("CRM_TIMEOUT", "30s")),
		AssumeSubmitSuccess: strings.EqualFold(getEnv("CRM_ASSUME_SUBMIT_SUCCESS", "true"), "true"),

		WhatsAppAccessToken:     getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID:   getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppGraphBaseURL:    getEnv("WHATSAPP_GRAPH_BASE_URL", "https://graph.facebook.com/v18.0"),
		WhatsAppConfirmTemplate: getEnv("WHATSAPP_CONFIRM_TEMPLATE", "cadastro_feito_confirmacao"),
		WhatsAppAlertTemplate:   getEnv("WHATSAPP_ALERT_TEMPLATE", "missionario_referencia_recebida"),
		WhatsAppLocale:          getEnv("WHATSAPP_LOCALE", "pt_BR"),
		WhatsAppConfirmReferrer: strings.EqualFold(getEnv("WHATSAPP_CONFIRM_REFERRER", "true"), "true"),

		SMSAccountSID:      getEnv("SMS_ACCOUNT_SID", ""),
		SMSAuthToken:       getEnv("SMS_AUTH_TOKEN", ""),
		SMSFromNumber:      getEnv("SMS_FROM_NUMBER", ""),
		SMSAPIBaseURL:      getEnv("SMS_API_BASE_URL", "https://api.twilio.com"),
		SMSRegion:          getEnv("SMS_REGION", "BR"),
		SMSConfirmReferrer: strings.EqualFold(getEnv("SMS_CONFIRM_REFERRER", "false"), "true"),

		OutboundWebhookURL: getEnv("OUTBOUND_WEBHOOK_URL", ""),
		SiteHost:           getEnv("SITE_HOST", ""),

		LeadAdsVerifyToken: getEnv("LEAD_ADS_VERIFY_TOKEN", ""),
		LeadAdsAccessToken: getEnv("LEAD_ADS_ACCESS_TOKEN", ""),
		GraphBaseURL:       getEnv("GRAPH_BASE_URL", "https://graph.facebook.com/v18.0"),

		AdInfoEnabled: strings.EqualFold(getEnv("AD_INFO_ENABLED", "false"), "true"),
		AdInfoURL:     getEnv("AD_INFO_URL", ""),

		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "referrals"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SweepInterval:    mustDuration(getEnv("SWEEP_INTERVAL", "30m")),

		FormFieldMapping: FormMapping{
			Name:        getEnv("FORM_FIELD_NAME", "name"),
			Phone:       getEnv("FORM_FIELD_PHONE", "phone"),
			Email:       getEnv("FORM_FIELD_EMAIL", "email"),
			Zip:         getEnv("FORM_FIELD_ZIP", "zip"),
			Road:        getEnv("FORM_FIELD_ROAD", "road"),
			HouseNumber: getEnv("FORM_FIELD_HOUSENUMBER", "housenumber"),
			City:        getEnv("FORM_FIELD_CITY", "city"),
			State:       getEnv("FORM_FIELD_STATE", "state"),
			UTM:         getEnv("FORM_FIELD_UTM", "utm"),
		},
		DefaultReferralType: mustInt(getEnv("FORM_REFERRAL_TYPE", "23")),
	}

	if cfg.CRMUsername == "" || cfg.CRMPassword == "" {
		return nil, fmt.Errorf("CRM_USERNAME and CRM_PASSWORD are required")
	}
	if cfg.MediaSecEmail == "" {
		return nil, fmt.Errorf("MEDIA_SEC_EMAIL is required")
	}
	if cfg.MissionID <= 0 {
		return nil, fmt.Errorf("MISSION_ID is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.AdInfoEnabled && cfg.AdInfoURL == "" {
		return nil, fmt.Errorf("AD_INFO_URL is required when AD_INFO_ENABLED is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
