package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prodemyx/prodemyx-api/internal/domain"
	"github.com/prodemyx/prodemyx-api/internal/repo"
)

type courseRepo struct{ pool *pgxpool.Pool }

func NewCourseRepo(pool *pgxpool.Pool) repo.CourseStore { return &courseRepo{pool: pool} }

func (r *courseRepo) FindByIDs(ctx context.Context, ids []int64) ([]domain.Course, error) {
	const q = `SELECT id, title, price::float8, COALESCE(status, '') FROM courses WHERE id = ANY($1) ORDER BY id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	return collectCourses(rows)
}

func (r *courseRepo) ListEnrolled(ctx context.Context, userID int64) ([]domain.EnrolledCourse, error) {
	const q = `
SELECT c.id, c.title, c.price::float8, a.access_granted_date
FROM user_course_access a
JOIN courses c ON c.id = a.course_id
WHERE a.user_id = $1
ORDER BY a.access_granted_date DESC`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.EnrolledCourse{}
	for rows.Next() {
		var e domain.EnrolledCourse
		if err := rows.Scan(&e.CourseID, &e.Title, &e.Price, &e.GrantedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectCourses(rows pgx.Rows) ([]domain.Course, error) {
	defer rows.Close()
	var out []domain.Course
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Price, &c.Status); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
