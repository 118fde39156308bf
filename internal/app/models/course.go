package models

import "time"

// Course represents a course offered by a department.
type Course struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	DepartmentID int64     `json:"departmentId"`
	Credits      int       `json:"credits"`
	Description  *string   `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Class is a cohort of students. Roster holds the enrolled student ids and
// is stored as a JSON array on the class row.
type Class struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	DepartmentID   int64     `json:"departmentId"`
	AcademicYear   string    `json:"academicYear" example:"2024/2025"`
	Roster         []int64   `json:"roster"`
	ClassTeacherID *int64    `json:"classTeacherId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// HasStudent reports whether studentID is on the roster.
func (c *Class) HasStudent(studentID int64) bool {
	for _, id := range c.Roster {
		if id == studentID {
			return true
		}
	}
	return false
}

// TimetableEntry places a course, a teacher and a class in a weekly slot.
// Times are "HH:MM" strings.
type TimetableEntry struct {
	ID         int64     `json:"id"`
	CourseID   int64     `json:"courseId"`
	TeacherID  int64     `json:"teacherId"`
	ClassID    int64     `json:"classId"`
	DayOfWeek  int       `json:"dayOfWeek" example:"1"`
	StartTime  string    `json:"startTime" example:"08:00"`
	EndTime    string    `json:"endTime" example:"09:00"`
	Room       *string   `json:"room,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	CourseCode string    `json:"courseCode,omitempty"`
	CourseName string    `json:"courseName,omitempty"`
	ClassName  string    `json:"className,omitempty"`
	Teacher    string    `json:"teacher,omitempty"`
}

// Overlaps reports whether two entries share a day and intersecting times.
func (t *TimetableEntry) Overlaps(other *TimetableEntry) bool {
	return t.DayOfWeek == other.DayOfWeek && t.StartTime < other.EndTime && other.StartTime < t.EndTime
}

// TimetableFilter narrows timetable listings. Zero values match everything.
type TimetableFilter struct {
	ClassID      int64
	TeacherID    int64
	CourseID     int64
	DepartmentID int64
	DayOfWeek    int
}
