// Package quota is the admission check applied to every inbound request
// before it reaches a generation handler. The gate only decides; counters are
// incremented by handlers after the generation actually succeeded, so a failed
// generation never burns quota.
package quota

import (
	"strings"
	"time"

	"github.com/BatmanBruc/bat-bot-neuro/types"
)

type RequestKind string

const (
	// KindExempt requests (commands, service updates) are never counted.
	KindExempt RequestKind = "exempt"
	// KindText covers free-form text and photo analysis, both drawing from
	// the text counter.
	KindText RequestKind = "text"
	// KindImage is the /img generation command only.
	KindImage RequestKind = "image"
)

// Classify maps an inbound message to the counter it draws from.
// Photo submissions consume text quota: vision answers are text.
func Classify(text string, hasPhoto bool) RequestKind {
	if hasPhoto {
		return KindText
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return KindExempt
	}
	if strings.HasPrefix(text, "/img") {
		return KindImage
	}
	if strings.HasPrefix(text, "/") {
		return KindExempt
	}
	return KindText
}

type Limits struct {
	Text  int
	Image int
}

// ExceededError is the expected, user-facing rejection. It is not a failure:
// nothing was mutated and the caller turns it into a polite upsell message.
type ExceededError struct {
	Kind  RequestKind
	Limit int
}

func (e *ExceededError) Error() string {
	return "quota exceeded: " + string(e.Kind)
}

type Gate struct {
	limits Limits
}

func NewGate(limits Limits) *Gate {
	return &Gate{limits: limits}
}

// Check admits or rejects a request. Premium accounts pass unconditionally.
// Free accounts pass while the relevant counter is strictly below its limit.
func (g *Gate) Check(account *types.Account, kind RequestKind, now time.Time) error {
	if kind == KindExempt {
		return nil
	}
	if account.IsPremium(now) {
		return nil
	}

	switch kind {
	case KindImage:
		if account.ImageUsage >= g.limits.Image {
			return &ExceededError{Kind: KindImage, Limit: g.limits.Image}
		}
	case KindText:
		if account.TextUsage >= g.limits.Text {
			return &ExceededError{Kind: KindText, Limit: g.limits.Text}
		}
	}
	return nil
}

func (g *Gate) Limits() Limits {
	return g.limits
}
