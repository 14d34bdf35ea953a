// Package roster is the sample student directory the demo caches.
package roster

import (
	"context"
	"slices"
	"time"

	"github.com/unkn0wn-root/cacheaside"
)

type Student struct {
	ID         int    `json:"id" msgpack:"id" cbor:"id"`
	Name       string `json:"name" msgpack:"name" cbor:"name"`
	Class      string `json:"class" msgpack:"class" cbor:"class"`
	RollNumber int    `json:"rollNumber" msgpack:"rollNumber" cbor:"rollNumber"`
}

func Seed() []Student {
	return []Student{
		{ID: 1, Class: "1st", Name: "ABC", RollNumber: 123},
		{ID: 2, Class: "2nd", Name: "DEF", RollNumber: 124},
		{ID: 3, Class: "3rd", Name: "GHI", RollNumber: 125},
		{ID: 4, Class: "4th", Name: "JKL", RollNumber: 126},
		{ID: 5, Class: "5th", Name: "MNO", RollNumber: 127},
	}
}

// Directory is a slow backing store of students.
type Directory struct {
	students []Student
}

func NewDirectory(students []Student) *Directory {
	return &Directory{students: slices.Clone(students)}
}

// All returns a copy of every student after delay, or ctx.Err() if ctx ends
// first.
func (d *Directory) All(ctx context.Context, delay time.Duration) ([]Student, error) {
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(d.students), nil
}

// Source adapts All for GetOrPopulate.
func (d *Directory) Source(delay time.Duration) cacheaside.Source[[]Student] {
	return func(ctx context.Context) ([]Student, error) {
		return d.All(ctx, delay)
	}
}
