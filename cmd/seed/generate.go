package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ecorvi/schmng-api/internal/models"
)

// roster is the generated sample school.
type roster struct {
	Students []models.Person
	Teachers []models.Person
	Staff    []models.Person
}

var (
	teacherNames = [][2]string{{"Asha", "Verma"}, {"Rohan", "Mehta"}, {"Leela", "Nair"}, {"Vikram", "Rao"}}
	teacherDepts = []string{"Mathematics", "Science", "English", "Social Studies"}
	staffNames   = [][2]string{{"Prakash", "Iyer"}, {"Meena", "Das"}}
	staffRoles   = []string{"Accountant", "Librarian"}
)

// generate builds classes*perClass students plus the fixed teachers and staff. Ids are
// stable so reseeding overwrites instead of duplicating.
func generate(classes, perClass int, rng *rand.Rand, now time.Time) roster {
	var r roster
	for c := 1; c <= classes; c++ {
		for n := 1; n <= perClass; n++ {
			r.Students = append(r.Students, student(c, n, rng, now))
		}
	}
	for i, name := range teacherNames {
		r.Teachers = append(r.Teachers, models.Person{
			ID:         fmt.Sprintf("seed-teacher-%02d", i+1),
			Type:       models.PersonTeacher,
			FirstName:  name[0],
			LastName:   name[1],
			Email:      fmt.Sprintf("teacher%02d@example.com", i+1),
			MobileNo:   phone(rng),
			Department: teacherDepts[i%len(teacherDepts)],
			ClassName:  fmt.Sprintf("Class %d", i%max(classes, 1)+1),
		})
	}
	for i, name := range staffNames {
		r.Staff = append(r.Staff, models.Person{
			ID:          fmt.Sprintf("seed-staff-%02d", i+1),
			Type:        models.PersonStaff,
			FirstName:   name[0],
			LastName:    name[1],
			Email:       fmt.Sprintf("staff%02d@example.com", i+1),
			MobileNo:    phone(rng),
			Designation: staffRoles[i%len(staffRoles)],
		})
	}
	return r
}

func student(class, n int, rng *rand.Rand, now time.Time) models.Person {
	birthYear := now.Year() - (5 + class)
	return models.Person{
		ID:          fmt.Sprintf("seed-student-%d-%02d", class, n),
		Type:        models.PersonStudent,
		FirstName:   fmt.Sprintf("Clss%d_Std%02d", class, n),
		LastName:    "Student",
		Email:       fmt.Sprintf("class%d.student%02d@example.com", class, n),
		ClassName:   fmt.Sprintf("Class %d", class),
		RollNumber:  fmt.Sprintf("%d%02d", class, n),
		Phone:       phone(rng),
		Address:     fmt.Sprintf("Address %d, Street %d, City", n, class),
		DateOfBirth: fmt.Sprintf("%d-%02d-%02d", birthYear, rng.Intn(12)+1, rng.Intn(28)+1),
		Gender:      []string{"Male", "Female"}[rng.Intn(2)],
	}
}

func phone(rng *rand.Rand) string {
	return fmt.Sprintf("91%10d", 7000000000+rng.Int63n(3000000000))
}
