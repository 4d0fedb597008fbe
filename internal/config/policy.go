package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ProcurementPolicy holds tunables that operators may change without a restart.
type ProcurementPolicy struct {
	Currency                string        `mapstructure:"currency"`
	MinRejectionReasonLen   int           `mapstructure:"minRejectionReasonLength"`
	PONumberMaxAttempts     int           `mapstructure:"poNumberMaxAttempts"`
	PaymentReuseWindow      time.Duration `mapstructure:"paymentReuseWindow"`
	PaymentInitiateLockTTL  time.Duration `mapstructure:"paymentInitiateLockTTL"`
	InvitationTTL           time.Duration `mapstructure:"invitationTTL"`
	NotificationSendTimeout time.Duration `mapstructure:"notificationSendTimeout"`
}

func DefaultProcurementPolicy() ProcurementPolicy {
	return ProcurementPolicy{
		Currency:                "INR",
		MinRejectionReasonLen:   5,
		PONumberMaxAttempts:     5,
		PaymentReuseWindow:      15 * time.Minute,
		PaymentInitiateLockTTL:  30 * time.Second,
		InvitationTTL:           7 * 24 * time.Hour,
		NotificationSendTimeout: 30 * time.Second,
	}
}

type PolicyHolder struct {
	current atomic.Value // holds ProcurementPolicy
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(policy ProcurementPolicy) *PolicyHolder {
	holder := &PolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func NewPolicyHolder(cfg Config, log *zap.Logger) (*PolicyHolder, error) {
	v := viper.New()

	if path := strings.TrimSpace(cfg.PolicyPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("procurement")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/procura")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PROCURA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultProcurementPolicy()
	v.SetDefault("procurement.currency", defaults.Currency)
	v.SetDefault("procurement.minRejectionReasonLength", defaults.MinRejectionReasonLen)
	v.SetDefault("procurement.poNumberMaxAttempts", defaults.PONumberMaxAttempts)
	v.SetDefault("procurement.paymentReuseWindow", defaults.PaymentReuseWindow)
	v.SetDefault("procurement.paymentInitiateLockTTL", defaults.PaymentInitiateLockTTL)
	v.SetDefault("procurement.invitationTTL", defaults.InvitationTTL)
	v.SetDefault("procurement.notificationSendTimeout", defaults.NotificationSendTimeout)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileLoaded {
		return holder, nil
	}

	log = log.Named("config.policy")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			log.Warn("policy reload failed", zap.Error(err))
			return
		}
		if err := validatePolicy(updated); err != nil {
			log.Warn("invalid policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// decodePolicy unmarshals through AllSettings so nested defaults merge with the file.
func decodePolicy(v *viper.Viper) (ProcurementPolicy, error) {
	var wrapper struct {
		Procurement ProcurementPolicy `mapstructure:"procurement"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return ProcurementPolicy{}, err
	}
	return wrapper.Procurement, nil
}

func (h *PolicyHolder) Get() ProcurementPolicy {
	if h == nil {
		return DefaultProcurementPolicy()
	}
	return h.current.Load().(ProcurementPolicy)
}

func validatePolicy(p ProcurementPolicy) error {
	if strings.TrimSpace(p.Currency) == "" {
		return errors.New("procurement.currency cannot be empty")
	}
	if p.MinRejectionReasonLen < 1 {
		return errors.New("procurement.minRejectionReasonLength must be positive")
	}
	if p.PONumberMaxAttempts < 1 {
		return errors.New("procurement.poNumberMaxAttempts must be positive")
	}
	if p.PaymentReuseWindow < 0 {
		return errors.New("procurement.paymentReuseWindow cannot be negative")
	}
	if p.InvitationTTL <= 0 {
		return errors.New("procurement.invitationTTL must be positive")
	}
	return nil
}
