package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPolicyHolderDefaultsWithoutFile(t *testing.T) {
	cfg := Config{PolicyPath: filepath.Join(t.TempDir(), "missing.yml")}
	_, err := NewPolicyHolder(cfg, zap.NewNop())
	// an explicit path that does not exist is an error, not a silent default
	require.Error(t, err)

	holder := NewStaticPolicyHolder(DefaultProcurementPolicy())
	assert.Equal(t, 5, holder.Get().MinRejectionReasonLen)
	assert.Equal(t, "INR", holder.Get().Currency)
}

func TestNewPolicyHolderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procurement.yml")
	content := []byte("procurement:\n  currency: USD\n  minRejectionReasonLength: 10\n  paymentReuseWindow: 5m\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	holder, err := NewPolicyHolder(Config{PolicyPath: path}, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, "USD", policy.Currency)
	assert.Equal(t, 10, policy.MinRejectionReasonLen)
	assert.Equal(t, 5*time.Minute, policy.PaymentReuseWindow)
	assert.Equal(t, 5, policy.PONumberMaxAttempts)
}

func TestValidatePolicy(t *testing.T) {
	p := DefaultProcurementPolicy()
	require.NoError(t, validatePolicy(p))

	p.PONumberMaxAttempts = 0
	assert.Error(t, validatePolicy(p))
}

func TestNilHolderReturnsDefaults(t *testing.T) {
	var holder *PolicyHolder
	assert.Equal(t, DefaultProcurementPolicy(), holder.Get())
}
