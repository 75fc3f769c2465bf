package models

import "strings"

// PersonType distinguishes the three person collections.
type PersonType string

const (
	PersonStudent PersonType = "student"
	PersonTeacher PersonType = "teacher"
	PersonStaff   PersonType = "staff"
)

// Collection returns the collection holding people of this type.
func (t PersonType) Collection() string {
	switch t {
	case PersonTeacher:
		return CollectionTeachers
	case PersonStaff:
		return CollectionStaff
	default:
		return CollectionStudents
	}
}

// Valid reports whether t is a known person type.
func (t PersonType) Valid() bool {
	return t == PersonStudent || t == PersonTeacher || t == PersonStaff
}

// Person is a student, teacher or non-teaching staff member.
type Person struct {
	ID           string     `json:"id"`
	Type         PersonType `json:"type"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	MobileNo     string     `json:"mobile_no,omitempty"`
	ClassName    string     `json:"class_name,omitempty"`
	RollNumber   string     `json:"roll_number,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	DateOfBirth  string     `json:"date_of_birth,omitempty"`
	Address      string     `json:"address,omitempty"`
	Age          int        `json:"age,omitempty"`
	Department   string     `json:"department,omitempty"`
	Designation  string     `json:"designation,omitempty"`
	ProfilePhoto string     `json:"profile_photo,omitempty"`
}

func (p Person) EntityID() string { return p.ID }

// FullName joins first and last name.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PersonInput is the create/edit form payload for any person type.
type PersonInput struct {
	FirstName   string `json:"first_name" validate:"notblank"`
	LastName    string `json:"last_name" validate:"notblank"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"omitempty,number"`
	MobileNo    string `json:"mobile_no" validate:"omitempty,number"`
	ClassName   string `json:"class_name"`
	RollNumber  string `json:"roll_number"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Address     string `json:"address"`
	Age         string `json:"age" validate:"omitempty,number"`
	Department  string `json:"department"`
	Designation string `json:"designation"`
}
