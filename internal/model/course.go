package model

import "time"

type Course struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Module groups lessons of a course. A module without session slots is pure e-learning.
type Module struct {
	ID        int64  `json:"id"`
	CourseID  int64  `json:"course_id"`
	Title     string `json:"title"`
	SortOrder int    `json:"sort_order"`
}

// CourseLesson is an e-learning lesson inside a module.
type CourseLesson struct {
	ID        int64  `json:"id"`
	ModuleID  int64  `json:"module_id"`
	Title     string `json:"title"`
	SortOrder int    `json:"sort_order"`
}

type LessonProgress struct {
	UserID      int64      `json:"user_id"`
	LessonID    int64      `json:"lesson_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Enrollment links a learner to a course and stores the write-time overall progress.
type Enrollment struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	CourseID   int64     `json:"course_id"`
	Progress   int       `json:"progress"`
	EnrolledAt time.Time `json:"enrolled_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
