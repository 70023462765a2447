package api

import "time"

// ImageField имя multipart поля с изображением в POST /scan
const ImageField = "image"

// ScanResponse результат анализа изображения
type ScanResponse struct {
	CreatedAt  time.Time `json:"createdAt"`
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Disease    string    `json:"disease"`
	Severity   string    `json:"severity"`
	ImageKey   string    `json:"imageKey,omitempty"`
	Treatment  []string  `json:"treatment"`
	Confidence float64   `json:"confidence"`
}
