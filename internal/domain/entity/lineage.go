package entity

import "time"

// RelationCreatedFromRejected marks a form recreated from a rejected one
const RelationCreatedFromRejected = "created_from_rejected"

// FormRelation links a rejected form to the form recreated from it
type FormRelation struct {
	ID             int64     `json:"id"`
	RejectedFormID int64     `json:"rejected_form_id"`
	NewFormID      int64     `json:"new_form_id"`
	RelationType   string    `json:"relation_type"`
	CreatedBy      int64     `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// FormSplit records approved records being moved to a child form
type FormSplit struct {
	ID           int64     `json:"id"`
	SourceFormID int64     `json:"source_form_id"`
	NewFormID    int64     `json:"new_form_id"`
	Level        string    `json:"level"`
	RecordIDs    []int64   `json:"record_ids"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ancestor is a form that history of another form descends from
type Ancestor struct {
	FormID int64
	Level  string
}
