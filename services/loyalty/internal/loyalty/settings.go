package loyalty

import (
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/apt"
)

const (
	DefaultOTPTTL            = 10 * time.Minute
	DefaultMasterAdminMobile = "9999999999"
	DefaultStaffCode         = "CAFE2024"
)

// Settings is the runtime configuration of the loyalty service, resolved once
// at startup.
type Settings struct {
	DemoMode          bool
	OTPTTL            time.Duration
	MasterAdminMobile string
	StaffCode         string
	SigningKey        []byte
	SMS               SMSSettings
}

type SMSSettings struct {
	Enabled    bool
	URL        string
	APIKey     string
	SenderID   string
	TemplateID string
}

func DefaultSettings() Settings {
	return Settings{
		OTPTTL:            DefaultOTPTTL,
		MasterAdminMobile: DefaultMasterAdminMobile,
		StaffCode:         DefaultStaffCode,
		SigningKey:        []byte("epicure-dev-signing-key"),
	}
}

// SettingsFromConfig reads the service settings from config.
func SettingsFromConfig(config *apt.Config) (Settings, error) {
	s := DefaultSettings()
	if config == nil {
		return s, nil
	}

	s.DemoMode = isTrue(config.GetStringOrDef("demo.mode", "false"))

	ttlStr := config.GetStringOrDef("otp.ttl", DefaultOTPTTL.String())
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		return s, fmt.Errorf("invalid otp.ttl %q: %w", ttlStr, err)
	}
	if ttl <= 0 {
		return s, fmt.Errorf("otp.ttl must be positive, got %s", ttl)
	}
	s.OTPTTL = ttl

	s.MasterAdminMobile = config.GetStringOrDef("admin.master.mobile", DefaultMasterAdminMobile)
	if err := ValidateMobile(s.MasterAdminMobile); err != nil {
		return s, fmt.Errorf("invalid admin.master.mobile %q", s.MasterAdminMobile)
	}

	s.StaffCode = config.GetStringOrDef("staff.code", DefaultStaffCode)

	if key, ok := config.GetString("auth.signing.key"); ok && key != "" {
		s.SigningKey = []byte(key)
	} else if !s.DemoMode {
		return s, fmt.Errorf("auth.signing.key is required outside demo mode")
	}

	s.SMS = SMSSettings{
		Enabled:    isTrue(config.GetStringOrDef("sms.enabled", "false")),
		URL:        config.GetStringOrDef("sms.airtel.url", "https://api.airtel.in/v1/sms/send"),
		APIKey:     config.GetStringOrDef("sms.airtel.key", ""),
		SenderID:   config.GetStringOrDef("sms.airtel.sender", ""),
		TemplateID: config.GetStringOrDef("sms.airtel.template", ""),
	}

	return s, nil
}

func isTrue(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
