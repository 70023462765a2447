package models

import "time"

// Prediction is the classification returned by the inference endpoint.
type Prediction struct {
	Disease    string   `json:"disease"`
	Severity   string   `json:"severity"`
	Treatment  []string `json:"treatment"`
	Confidence float64  `json:"confidence"`
}

// Scan is a persisted prediction owned by exactly one user.
type Scan struct {
	CreatedAt  time.Time // время создания
	ID         string    // UUID скана
	UserID     string    // владелец
	Disease    string
	Severity   string
	ImageKey   string   // ключ копии изображения в архиве, пустой если архив отключен
	Treatment  []string // рекомендации в исходном порядке
	Confidence float64  // 0.0 - 1.0
}

// NewScan builds a scan record from a prediction.
func NewScan(id, userID string, p *Prediction, createdAt time.Time) *Scan {
	treatment := make([]string, len(p.Treatment))
	copy(treatment, p.Treatment)

	return &Scan{
		ID:         id,
		UserID:     userID,
		Disease:    p.Disease,
		Confidence: p.Confidence,
		Severity:   p.Severity,
		Treatment:  treatment,
		CreatedAt:  createdAt,
	}
}

// OwnedBy reports whether the scan belongs to userID.
func (s *Scan) OwnedBy(userID string) bool {
	return userID != "" && s.UserID == userID
}
