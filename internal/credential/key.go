package credential

import "encoding/json"

// GeminiKey is a raw Gemini/Vertex API key credential.
type GeminiKey struct {
	inner string
}

func NewGeminiKey(raw string) GeminiKey {
	return GeminiKey{inner: raw}
}

func (k GeminiKey) String() string {
	return k.inner
}

func (k GeminiKey) Ellipsis() string {
	if len(k.inner) > 10 {
		return k.inner[:10] + "..."
	}
	return k.inner
}

func (k GeminiKey) IsZero() bool {
	return k.inner == ""
}

// MarshalJSON renders the raw key so pool snapshots and the persisted
// credential file round-trip.
func (k GeminiKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.inner)
}

func (k *GeminiKey) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &k.inner)
}

// KeyStatus is the pool-owned record for one Gemini key. Keys never enter
// an exhausted state; repeated 4xx responses simply cycle the counter.
type KeyStatus struct {
	Key      GeminiKey `json:"key"`
	Count403 int       `json:"count_403"`
}

func NewKeyStatus(raw string) *KeyStatus {
	return &KeyStatus{Key: NewGeminiKey(raw)}
}

func (s *KeyStatus) SameIdentity(other *KeyStatus) bool {
	return s.Key.inner == other.Key.inner
}

func (s *KeyStatus) Clone() *KeyStatus {
	cp := *s
	return &cp
}
