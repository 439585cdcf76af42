package models

import "time"

// SiteSettingsID is the _id of the singleton settings document.
const SiteSettingsID = 1

const DefaultEstimatedDeliveryDays = 3

type SiteSettings struct {
	ID int `bson:"_id" json:"id"`

	SiteName        string `bson:"siteName" json:"siteName"`
	SiteDescription string `bson:"siteDescription" json:"siteDescription"`
	SiteLogoURL     string `bson:"siteLogoUrl" json:"siteLogoUrl"`
	ContactEmail    string `bson:"contactEmail" json:"contactEmail"`
	ContactPhone    string `bson:"contactPhone" json:"contactPhone"`
	ContactAddress  string `bson:"contactAddress" json:"contactAddress"`
	BusinessHours   string `bson:"businessHours" json:"businessHours"`

	FromEmail        string `bson:"fromEmail" json:"fromEmail"`
	FromName         string `bson:"fromName" json:"fromName"`
	ContactFromEmail string `bson:"contactFromEmail" json:"contactFromEmail"`
	ContactFromName  string `bson:"contactFromName" json:"contactFromName"`
	SendGridAPIKey   string `bson:"sendgridApiKey" json:"sendgridApiKey"`
	SMTPHost         string `bson:"smtpHost" json:"smtpHost"`
	SMTPPort         int    `bson:"smtpPort" json:"smtpPort"`
	SMTPUser         string `bson:"smtpUser" json:"smtpUser"`
	SMTPPassword     string `bson:"smtpPassword" json:"smtpPassword"`

	OrderNotificationEnabled        bool `bson:"orderNotificationEnabled" json:"orderNotificationEnabled"`
	StatusUpdateNotificationEnabled bool `bson:"statusUpdateNotificationEnabled" json:"statusUpdateNotificationEnabled"`
	ContactAutoReplyEnabled         bool `bson:"contactAutoReplyEnabled" json:"contactAutoReplyEnabled"`
	MaintenanceMode                 bool `bson:"maintenanceMode" json:"maintenanceMode"`

	DefaultShippingFee    int        `bson:"defaultShippingFee" json:"defaultShippingFee"`
	ExpressShippingFee    int        `bson:"expressShippingFee" json:"expressShippingFee"`
	FreeShippingThreshold int        `bson:"freeShippingThreshold" json:"freeShippingThreshold"`
	EstimatedDeliveryDays int        `bson:"estimatedDeliveryDays" json:"estimatedDeliveryDays"`
	ShippingMethods       StringList `bson:"shippingMethods" json:"shippingMethods"`

	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DefaultSiteSettings is served until an admin saves the settings once.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		ID:                              SiteSettingsID,
		SiteName:                        "オーダーサイト",
		OrderNotificationEnabled:        true,
		StatusUpdateNotificationEnabled: true,
		ContactAutoReplyEnabled:         true,
		EstimatedDeliveryDays:           DefaultEstimatedDeliveryDays,
		ShippingMethods:                 StringList{},
	}
}

func (s SiteSettings) DeliveryDays() int {
	if s.EstimatedDeliveryDays <= 0 {
		return DefaultEstimatedDeliveryDays
	}
	return s.EstimatedDeliveryDays
}
