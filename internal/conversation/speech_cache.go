package conversation

import (
	"time"

	"github.com/patrickmn/go-cache"

	"voxchat/internal/domain"
	"voxchat/internal/ports"
)

// SpeechCache remembers synthesized audio keyed by language and answer text.
type SpeechCache struct {
	cache *cache.Cache
}

// NewSpeechCache expires entries after ttl. A non-positive ttl means 30 minutes.
func NewSpeechCache(ttl time.Duration) *SpeechCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SpeechCache{cache: cache.New(ttl, ttl/3)}
}

func speechKey(lang domain.Language, text string) string {
	return lang.Wire() + "\x00" + text
}

func (c *SpeechCache) Get(lang domain.Language, text string) ([]byte, bool) {
	if x, found := c.cache.Get(speechKey(lang, text)); found {
		audio := x.([]byte)
		return append([]byte(nil), audio...), true
	}
	return nil, false
}

func (c *SpeechCache) Put(lang domain.Language, text string, audio []byte) {
	if len(audio) == 0 {
		return
	}
	c.cache.Set(speechKey(lang, text), append([]byte(nil), audio...), cache.DefaultExpiration)
}

var _ ports.SpeechCache = (*SpeechCache)(nil)
