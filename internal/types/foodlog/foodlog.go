package foodlog

import (
	"time"
)

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Entry is one logged meal. Conflicts resolve last-write-wins on ModifiedAt.
type Entry struct {
	ID         string    `json:"id" db:"id"`
	Date       string    `json:"date" db:"date"`
	MealType   MealType  `json:"meal_type" db:"meal_type"`
	Name       string    `json:"name" db:"name"`
	Calories   float64   `json:"calories" db:"calories"`
	ProteinG   float64   `json:"protein_g" db:"protein_g"`
	CarbsG     float64   `json:"carbs_g" db:"carbs_g"`
	FatG       float64   `json:"fat_g" db:"fat_g"`
	ModifiedAt time.Time `json:"modified_at" db:"modified_at"`
}
