package models

import "time"

type Lab struct {
	ID        int64     `yaml:"id" json:"id"`
	Code      string    `yaml:"code" json:"code"`
	Name      string    `yaml:"name" json:"name"`
	Location  string    `yaml:"location" json:"location"`
	Capacity  int64     `yaml:"capacity" json:"capacity"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}

type Equipment struct {
	ID           int64     `yaml:"id" json:"id"`
	LabID        int64     `yaml:"lab_id" json:"lab_id"`
	Name         string    `yaml:"name" json:"name"`
	Category     string    `yaml:"category" json:"category"`
	SerialNumber string    `yaml:"serial_number" json:"serial_number"`
	SortOrder    int64     `yaml:"sort_order" json:"sort_order"`
	IsActive     bool      `yaml:"is_active" json:"is_active"`
	CreatedAt    time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at" json:"updated_at"`
}
