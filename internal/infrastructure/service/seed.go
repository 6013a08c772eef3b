package service

import (
	"github.com/schoolpulse/assessment-hub/internal/domain/roster"
	"github.com/schoolpulse/assessment-hub/internal/infrastructure/persistence/memory"
)

// SeedDemoRoster loads a small two-grade roster so the development server
// accepts uploads without a database.
func SeedDemoRoster(store *memory.Store) {
	grades := []struct {
		code, name string
		rooms      []string
		students   [][2]string // external id, full name
	}{
		{
			code: "3", name: "Grade 3",
			rooms: []string{"G3-A", "G3-B"},
			students: [][2]string{
				{"S-3001", "Ava Martinez"},
				{"S-3002", "Liam Chen"},
				{"S-3003", "Noah Patel"},
				{"", "Emma Johnson"},
			},
		},
		{
			code: "4", name: "Grade 4",
			rooms: []string{"G4-A"},
			students: [][2]string{
				{"S-4001", "Olivia Brown"},
				{"S-4002", "Lucas Garcia"},
			},
		},
	}

	for _, g := range grades {
		gl := store.AddGradeLevel(roster.GradeLevel{Code: g.code, Name: g.name})
		for _, code := range g.rooms {
			store.AddClassroom(roster.Classroom{Code: code, Name: code, GradeLevelID: gl.ID})
		}
		for _, s := range g.students {
			store.AddStudent(roster.Student{ExternalID: s[0], FullName: s[1], GradeLevelID: gl.ID})
		}
	}
}
