package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Question is the stored form of one quiz question.
type Question struct {
	Number   int      `json:"number" bson:"number"`
	Question string   `json:"question" bson:"question"`
	Choices  []string `json:"choices" bson:"choices"`
	Answer   int      `json:"answer" bson:"answer"`
}

// Questions is stored as a JSON array in a single CLOB column.
type Questions []Question

// Value implements the driver.Valuer interface
func (q Questions) Value() (driver.Value, error) {
	if q == nil {
		return "[]", nil
	}
	jsonData, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(jsonData), nil
}

// Scan implements the sql.Scanner interface
func (q *Questions) Scan(value interface{}) error {
	if value == nil {
		*q = Questions{}
		return nil
	}

	var bytesToParse []byte
	switch v := value.(type) {
	case []byte:
		bytesToParse = v
	case string:
		bytesToParse = []byte(v)
	default:
		return errors.New("Questions Scan: unsupported type " + fmt.Sprintf("%T", value))
	}

	if len(bytesToParse) == 0 || string(bytesToParse) == "null" {
		*q = Questions{}
		return nil
	}
	return json.Unmarshal(bytesToParse, q)
}

// Quiz is a row of the quizzes table.
type Quiz struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Questions Questions `db:"questions"`
	CreatedAt time.Time `db:"created_at"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuizSummary is the listing projection of a quizzes row.
type QuizSummary struct {
	ID    string `db:"id"`
	Title string `db:"title"`
}

// QuizDocument is a document of the questions collection. Its _id is a ULID
// string; documents keyed by ObjectId are not readable through this model.
type QuizDocument struct {
	ID        string     `bson:"_id"`
	Title     string     `bson:"title"`
	Data      []Question `bson:"data"`
	CreatedAt time.Time  `bson:"created_at,omitempty"`
}
