package models

// Collection names in the document store.
const (
	CollectionStudents   = "students"
	CollectionTeachers   = "teachers"
	CollectionStaff      = "non_teaching_staff"
	CollectionFees       = "fees"
	CollectionSchedules  = "schedules"
	CollectionTimetables = "timetables"
	CollectionNotices    = "notices"
	CollectionLeaves     = "leave_applications"
	CollectionAttendance = "attendance"
	CollectionMessages   = "messages"
	CollectionUsers      = "users"
	CollectionGrades     = "student_grades"
	CollectionEvents     = "class_events"
)

// Entity is implemented by every record stored in a collection.
type Entity interface {
	EntityID() string
}
