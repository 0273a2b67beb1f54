package domain

import "time"

// Course is the slice of the catalog this service reads. Price is nil for free courses.
type Course struct {
	ID     int64    `json:"id"`
	Title  string   `json:"title"`
	Price  *float64 `json:"price"`
	Status string   `json:"status,omitempty"`
}

// PriceOrZero is the amount recorded on a purchase row.
func (c Course) PriceOrZero() float64 {
	if c.Price == nil {
		return 0
	}
	return *c.Price
}

// EnrolledCourse is one row of a student's library.
type EnrolledCourse struct {
	CourseID  int64     `json:"course_id"`
	Title     string    `json:"title"`
	Price     *float64  `json:"price"`
	GrantedAt time.Time `json:"access_granted_date"`
}

// FallbackCourseTitle labels courses whose title can no longer be resolved.
const FallbackCourseTitle = "Selected Courses"
