package models

import "time"

// AttendanceRecord is one student's mark for a class (and optionally a
// course) on a date.
type AttendanceRecord struct {
	ID          int64            `json:"id"`
	StudentID   int64            `json:"studentId"`
	ClassID     int64            `json:"classId"`
	CourseID    *int64           `json:"courseId,omitempty"`
	Date        time.Time        `json:"date"`
	Status      AttendanceStatus `json:"status"`
	MarkedBy    int64            `json:"markedBy"`
	Remarks     *string          `json:"remarks,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	StudentName string           `json:"studentName,omitempty"`
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	StudentID int64
	ClassID   int64
	CourseID  int64
	From      *time.Time
	To        *time.Time
}

// Grade is a scored assessment for a student in a course.
type Grade struct {
	ID          int64     `json:"id"`
	StudentID   int64     `json:"studentId"`
	CourseID    int64     `json:"courseId"`
	TeacherID   int64     `json:"teacherId"`
	Assessment  string    `json:"assessment" example:"Midterm"`
	Score       float64   `json:"score" example:"78.5"`
	MaxScore    float64   `json:"maxScore" example:"100"`
	Term        string    `json:"term" example:"2024-T1"`
	Remarks     *string   `json:"remarks,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CourseCode  string    `json:"courseCode,omitempty"`
	CourseName  string    `json:"courseName,omitempty"`
	StudentName string    `json:"studentName,omitempty"`
}

// Percentage returns the score scaled to 0..100.
func (g *Grade) Percentage() float64 {
	if g.MaxScore <= 0 {
		return 0
	}
	return g.Score / g.MaxScore * 100
}

// GradeFilter narrows grade listings.
type GradeFilter struct {
	StudentID int64
	CourseID  int64
	TeacherID int64
	Term      string
}
