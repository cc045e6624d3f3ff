package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-neuro/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		hasPhoto bool
		want     RequestKind
	}{
		{"plain text", "расскажи про Go", false, KindText},
		{"image command", "/img кот", false, KindImage},
		{"image command bare", "/img", false, KindImage},
		{"photo consumes text quota", "", true, KindText},
		{"photo with caption", "что на фото?", true, KindText},
		{"start command exempt", "/start", false, KindExempt},
		{"buy command exempt", "/buy", false, KindExempt},
		{"admin command exempt", "/admin", false, KindExempt},
		{"empty message exempt", "", false, KindExempt},
		{"whitespace only exempt", "   ", false, KindExempt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text, tt.hasPhoto))
		})
	}
}

func freeAccount(textUsage, imageUsage int) *types.Account {
	return &types.Account{
		TelegramID: 100,
		TextUsage:  textUsage,
		ImageUsage: imageUsage,
	}
}

func TestGateFreeTierBelowLimit(t *testing.T) {
	gate := NewGate(Limits{Text: 100, Image: 1})
	now := time.Now().UTC()

	assert.NoError(t, gate.Check(freeAccount(0, 0), KindText, now))
	assert.NoError(t, gate.Check(freeAccount(99, 0), KindText, now))
	assert.NoError(t, gate.Check(freeAccount(0, 0), KindImage, now))
}

func TestGateFreeTierAtLimit(t *testing.T) {
	gate := NewGate(Limits{Text: 100, Image: 1})
	now := time.Now().UTC()

	err := gate.Check(freeAccount(100, 0), KindText, now)
	require.Error(t, err)
	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, KindText, exceeded.Kind)
	assert.Equal(t, 100, exceeded.Limit)

	err = gate.Check(freeAccount(0, 1), KindImage, now)
	require.Error(t, err)
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, KindImage, exceeded.Kind)
}

func TestGateCountersAreIndependent(t *testing.T) {
	gate := NewGate(Limits{Text: 100, Image: 1})
	now := time.Now().UTC()

	// Image counter exhausted, text still open.
	acc := freeAccount(0, 1)
	assert.Error(t, gate.Check(acc, KindImage, now))
	assert.NoError(t, gate.Check(acc, KindText, now))
}

func TestGatePremiumBypassesCounters(t *testing.T) {
	gate := NewGate(Limits{Text: 100, Image: 1})
	now := time.Now().UTC()
	until := now.Add(time.Hour)

	acc := freeAccount(100000, 100000)
	acc.PremiumUntil = &until

	assert.NoError(t, gate.Check(acc, KindText, now))
	assert.NoError(t, gate.Check(acc, KindImage, now))
}

func TestGateExpiredPremiumCountsAgain(t *testing.T) {
	gate := NewGate(Limits{Text: 100, Image: 1})
	now := time.Now().UTC()
	until := now.Add(-time.Minute)

	acc := freeAccount(100, 0)
	acc.PremiumUntil = &until

	assert.Error(t, gate.Check(acc, KindText, now))
}

func TestGateExemptAlwaysPasses(t *testing.T) {
	gate := NewGate(Limits{Text: 0, Image: 0})
	now := time.Now().UTC()

	assert.NoError(t, gate.Check(freeAccount(100000, 100000), KindExempt, now))
}

func TestPremiumActive(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Second)
	past := now.Add(-time.Second)

	assert.False(t, types.PremiumActive(nil, now))
	assert.False(t, types.PremiumActive(&past, now))
	assert.False(t, types.PremiumActive(&now, now))
	assert.True(t, types.PremiumActive(&future, now))
}
