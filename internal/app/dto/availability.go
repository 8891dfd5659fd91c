package dto

import "time"

type Availability struct {
	CarID     string    `json:"car_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

type AvailableCars struct {
	Start time.Time    `json:"start"`
	End   time.Time    `json:"end"`
	Items []CarSummary `json:"items"`
}
