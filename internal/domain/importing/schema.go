package importing

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Field is a canonical column name of an entity schema.
type Field string

const (
	FieldAdmissionNumber Field = "admission_number"
	FieldEmployeeID      Field = "employee_id"
	FieldFullName        Field = "full_name"
	FieldFirstName       Field = "first_name"
	FieldLastName        Field = "last_name"
	FieldEmail           Field = "email"
	FieldPhone           Field = "phone"
	FieldDateOfBirth     Field = "date_of_birth"
	FieldGender          Field = "gender"
	FieldGrade           Field = "grade"
	FieldSection         Field = "section"
	FieldRollNumber      Field = "roll_number"
	FieldBranchCode      Field = "branch_code"
	FieldAdmissionDate   Field = "admission_date"
	FieldGuardianName    Field = "guardian_name"
	FieldGuardianPhone   Field = "guardian_phone"
	FieldGuardianEmail   Field = "guardian_email"
	FieldAddress         Field = "address"
	FieldBloodGroup      Field = "blood_group"
	FieldNationality     Field = "nationality"
	FieldRemarks         Field = "remarks"
	FieldQualification   Field = "qualification"
	FieldSpecialization  Field = "specialization"
	FieldDesignation     Field = "designation"
	FieldDepartment      Field = "department"
	FieldJoiningDate     Field = "joining_date"
	FieldExperienceYears Field = "experience_years"
)

type FieldKind int

const (
	KindText FieldKind = iota
	KindDate
	KindInteger
)

type FieldSpec struct {
	Field    Field
	Kind     FieldKind
	Synonyms []string
	Example  string
	// Required fields must be present once the batch context is applied.
	Required bool
	// InTemplate marks the column as part of the downloadable template.
	InTemplate bool
	// MaxLen is the longest text, in characters, the production column holds.
	// Zero means unbounded.
	MaxLen int
}

type Schema struct {
	Entity EntityType
	Fields []FieldSpec
}

var studentSchema = Schema{
	Entity: EntityStudent,
	Fields: []FieldSpec{
		{Field: FieldAdmissionNumber, Synonyms: []string{"admission_number", "admission_no", "adm_no", "admission_id", "enrollment_number", "enrollment_no", "registration_number", "registration_no", "reg_no", "student_id"}, Example: "ADM-2024-001", Required: true, InTemplate: true, MaxLen: 100},
		{Field: FieldFirstName, Synonyms: []string{"first_name", "firstname", "fname", "given_name"}, Example: "Amina", Required: true, InTemplate: true, MaxLen: 120},
		{Field: FieldLastName, Synonyms: []string{"last_name", "lastname", "lname", "surname", "family_name"}, Example: "Rahman", Required: true, InTemplate: true, MaxLen: 120},
		{Field: FieldFullName, Synonyms: []string{"full_name", "fullname", "name", "student_name"}},
		{Field: FieldEmail, Synonyms: []string{"email", "email_address", "e_mail", "mail", "student_email"}, Example: "amina.rahman@example.com", InTemplate: true, MaxLen: 320},
		{Field: FieldPhone, Synonyms: []string{"phone", "phone_number", "phone_no", "mobile", "mobile_number", "mobile_no", "contact", "contact_number", "telephone"}, Example: "+8801712345678", InTemplate: true, MaxLen: 32},
		{Field: FieldDateOfBirth, Kind: KindDate, Synonyms: []string{"date_of_birth", "dob", "birthdate", "birth_date", "birthday", "d_o_b"}, Example: "2012-04-17", Required: true, InTemplate: true},
		{Field: FieldGender, Synonyms: []string{"gender", "sex"}, Example: "female", InTemplate: true},
		{Field: FieldGrade, Synonyms: []string{"grade", "class", "class_name", "standard", "grade_level"}, Example: "6", Required: true, InTemplate: true, MaxLen: 50},
		{Field: FieldSection, Synonyms: []string{"section", "division", "stream"}, Example: "A", InTemplate: true, MaxLen: 50},
		{Field: FieldRollNumber, Synonyms: []string{"roll_number", "roll_no", "roll"}, Example: "12", InTemplate: true, MaxLen: 50},
		{Field: FieldBranchCode, Synonyms: []string{"branch_code", "branch", "campus", "campus_code", "school_code"}, Example: "MAIN", InTemplate: true, MaxLen: 50},
		{Field: FieldAdmissionDate, Kind: KindDate, Synonyms: []string{"admission_date", "date_of_admission", "enrollment_date", "enrolled_on"}, Example: "2024-01-08", InTemplate: true},
		{Field: FieldGuardianName, Synonyms: []string{"guardian_name", "guardian", "parent_name", "father_name", "mother_name"}, Example: "Karim Rahman", InTemplate: true, MaxLen: 255},
		{Field: FieldGuardianPhone, Synonyms: []string{"guardian_phone", "guardian_mobile", "guardian_contact", "parent_phone", "parent_mobile", "parent_contact"}, Example: "+8801812345678", InTemplate: true, MaxLen: 32},
		{Field: FieldGuardianEmail, Synonyms: []string{"guardian_email", "parent_email"}, Example: "karim.rahman@example.com", InTemplate: true, MaxLen: 320},
		{Field: FieldAddress, Synonyms: []string{"address", "home_address", "residential_address", "street_address"}, Example: "12 Lake Road, Dhaka", InTemplate: true},
		{Field: FieldBloodGroup, Synonyms: []string{"blood_group", "blood_type", "blood"}, Example: "B+", InTemplate: true, MaxLen: 10},
		{Field: FieldNationality, Synonyms: []string{"nationality", "citizenship", "country"}, Example: "Bangladeshi", InTemplate: true, MaxLen: 100},
		{Field: FieldRemarks, Synonyms: []string{"remarks", "remark", "notes", "note", "comments"}, Example: "", InTemplate: true},
	},
}

var teacherSchema = Schema{
	Entity: EntityTeacher,
	Fields: []FieldSpec{
		{Field: FieldEmployeeID, Synonyms: []string{"employee_id", "employee_no", "employee_number", "emp_id", "emp_no", "staff_id", "staff_no", "teacher_id", "teacher_code"}, Example: "EMP-0042", Required: true, InTemplate: true, MaxLen: 100},
		{Field: FieldFirstName, Synonyms: []string{"first_name", "firstname", "fname", "given_name"}, Example: "Farhan", Required: true, InTemplate: true, MaxLen: 120},
		{Field: FieldLastName, Synonyms: []string{"last_name", "lastname", "lname", "surname", "family_name"}, Example: "Hossain", Required: true, InTemplate: true, MaxLen: 120},
		{Field: FieldFullName, Synonyms: []string{"full_name", "fullname", "name", "teacher_name"}},
		{Field: FieldEmail, Synonyms: []string{"email", "email_address", "e_mail", "mail", "official_email"}, Example: "farhan.hossain@example.com", Required: true, InTemplate: true, MaxLen: 320},
		{Field: FieldPhone, Synonyms: []string{"phone", "phone_number", "phone_no", "mobile", "mobile_number", "mobile_no", "contact", "contact_number", "telephone"}, Example: "+8801912345678", InTemplate: true, MaxLen: 32},
		{Field: FieldDateOfBirth, Kind: KindDate, Synonyms: []string{"date_of_birth", "dob", "birthdate", "birth_date", "birthday", "d_o_b"}, Example: "1988-09-02", InTemplate: true},
		{Field: FieldGender, Synonyms: []string{"gender", "sex"}, Example: "male", InTemplate: true},
		{Field: FieldQualification, Synonyms: []string{"qualification", "qualifications", "highest_qualification", "education", "degree"}, Example: "M.Sc. Mathematics", InTemplate: true, MaxLen: 255},
		{Field: FieldSpecialization, Synonyms: []string{"specialization", "specialisation", "subject", "subjects", "major", "expertise"}, Example: "Mathematics", InTemplate: true, MaxLen: 255},
		{Field: FieldDesignation, Synonyms: []string{"designation", "position", "job_title", "title"}, Example: "Senior Teacher", InTemplate: true, MaxLen: 255},
		{Field: FieldDepartment, Synonyms: []string{"department", "dept", "faculty"}, Example: "Science", InTemplate: true, MaxLen: 100},
		{Field: FieldJoiningDate, Kind: KindDate, Synonyms: []string{"joining_date", "date_of_joining", "join_date", "doj", "hire_date", "start_date"}, Example: "2019-07-01", InTemplate: true},
		{Field: FieldExperienceYears, Kind: KindInteger, Synonyms: []string{"experience_years", "years_of_experience", "experience_in_years", "experience", "exp"}, Example: "9", InTemplate: true},
		{Field: FieldBranchCode, Synonyms: []string{"branch_code", "branch", "campus", "campus_code", "school_code"}, Example: "MAIN", InTemplate: true, MaxLen: 50},
		{Field: FieldAddress, Synonyms: []string{"address", "home_address", "residential_address", "street_address"}, Example: "44 Green Road, Dhaka", InTemplate: true},
		{Field: FieldRemarks, Synonyms: []string{"remarks", "remark", "notes", "note", "comments"}, Example: "", InTemplate: true},
	},
}

func SchemaFor(entity EntityType) Schema {
	if entity == EntityTeacher {
		return teacherSchema
	}
	return studentSchema
}

func (s Schema) Lookup(field Field) (FieldSpec, bool) {
	for _, fs := range s.Fields {
		if fs.Field == field {
			return fs, true
		}
	}
	return FieldSpec{}, false
}

// TemplateFields lists the template columns in order.
func (s Schema) TemplateFields() []FieldSpec {
	out := make([]FieldSpec, 0, len(s.Fields))
	for _, fs := range s.Fields {
		if fs.InTemplate {
			out = append(out, fs)
		}
	}
	return out
}

type value struct {
	text *string
	date *time.Time
	num  *int
}

func (s *StudentFields) assign(field Field, v value) bool {
	switch field {
	case FieldAdmissionNumber:
		s.AdmissionNumber = v.text
	case FieldFirstName:
		s.FirstName = v.text
	case FieldLastName:
		s.LastName = v.text
	case FieldFullName:
		s.FirstName, s.LastName = splitFullName(s.FirstName, s.LastName, v.text)
	case FieldEmail:
		s.Email = lowerPtr(v.text)
	case FieldPhone:
		s.Phone = v.text
	case FieldDateOfBirth:
		s.DateOfBirth = v.date
	case FieldGender:
		s.Gender = v.text
	case FieldGrade:
		s.Grade = v.text
	case FieldSection:
		s.Section = v.text
	case FieldRollNumber:
		s.RollNumber = v.text
	case FieldBranchCode:
		s.BranchCode = v.text
	case FieldAdmissionDate:
		s.AdmissionDate = v.date
	case FieldGuardianName:
		s.GuardianName = v.text
	case FieldGuardianPhone:
		s.GuardianPhone = v.text
	case FieldGuardianEmail:
		s.GuardianEmail = lowerPtr(v.text)
	case FieldAddress:
		s.Address = v.text
	case FieldBloodGroup:
		s.BloodGroup = v.text
	case FieldNationality:
		s.Nationality = v.text
	case FieldRemarks:
		s.Remarks = v.text
	default:
		return false
	}
	return true
}

func (t *TeacherFields) assign(field Field, v value) bool {
	switch field {
	case FieldEmployeeID:
		t.EmployeeID = v.text
	case FieldFirstName:
		t.FirstName = v.text
	case FieldLastName:
		t.LastName = v.text
	case FieldFullName:
		t.FirstName, t.LastName = splitFullName(t.FirstName, t.LastName, v.text)
	case FieldEmail:
		t.Email = lowerPtr(v.text)
	case FieldPhone:
		t.Phone = v.text
	case FieldDateOfBirth:
		t.DateOfBirth = v.date
	case FieldGender:
		t.Gender = v.text
	case FieldQualification:
		t.Qualification = v.text
	case FieldSpecialization:
		t.Specialization = v.text
	case FieldDesignation:
		t.Designation = v.text
	case FieldDepartment:
		t.Department = v.text
	case FieldJoiningDate:
		t.JoiningDate = v.date
	case FieldExperienceYears:
		t.ExperienceYears = v.num
	case FieldBranchCode:
		t.BranchCode = v.text
	case FieldAddress:
		t.Address = v.text
	case FieldRemarks:
		t.Remarks = v.text
	default:
		return false
	}
	return true
}

// splitFullName fills first/last name from a combined column without
// overwriting values that came from dedicated columns.
func splitFullName(first, last, full *string) (*string, *string) {
	if full == nil {
		return first, last
	}
	parts := strings.Fields(*full)
	if len(parts) == 0 {
		return first, last
	}
	if first == nil {
		given := parts[0]
		if len(parts) > 1 {
			given = strings.Join(parts[:len(parts)-1], " ")
		}
		first = &given
	}
	if last == nil && len(parts) > 1 {
		family := parts[len(parts)-1]
		last = &family
	}
	return first, last
}

func lowerPtr(v *string) *string {
	if v == nil {
		return nil
	}
	lowered := strings.ToLower(*v)
	return &lowered
}

func (s *StudentFields) text(field Field) *string {
	switch field {
	case FieldAdmissionNumber:
		return s.AdmissionNumber
	case FieldFirstName:
		return s.FirstName
	case FieldLastName:
		return s.LastName
	case FieldEmail:
		return s.Email
	case FieldPhone:
		return s.Phone
	case FieldGender:
		return s.Gender
	case FieldGrade:
		return s.Grade
	case FieldSection:
		return s.Section
	case FieldRollNumber:
		return s.RollNumber
	case FieldBranchCode:
		return s.BranchCode
	case FieldGuardianName:
		return s.GuardianName
	case FieldGuardianPhone:
		return s.GuardianPhone
	case FieldGuardianEmail:
		return s.GuardianEmail
	case FieldAddress:
		return s.Address
	case FieldBloodGroup:
		return s.BloodGroup
	case FieldNationality:
		return s.Nationality
	case FieldRemarks:
		return s.Remarks
	}
	return nil
}

func (t *TeacherFields) text(field Field) *string {
	switch field {
	case FieldEmployeeID:
		return t.EmployeeID
	case FieldFirstName:
		return t.FirstName
	case FieldLastName:
		return t.LastName
	case FieldEmail:
		return t.Email
	case FieldPhone:
		return t.Phone
	case FieldGender:
		return t.Gender
	case FieldQualification:
		return t.Qualification
	case FieldSpecialization:
		return t.Specialization
	case FieldDesignation:
		return t.Designation
	case FieldDepartment:
		return t.Department
	case FieldBranchCode:
		return t.BranchCode
	case FieldAddress:
		return t.Address
	case FieldRemarks:
		return t.Remarks
	}
	return nil
}

// TooLong lists the text fields of row that exceed their MaxLen.
func (s Schema) TooLong(row StagingRow) []FieldSpec {
	var out []FieldSpec
	for _, fs := range s.Fields {
		if fs.MaxLen == 0 || fs.Kind != KindText {
			continue
		}
		var v *string
		switch {
		case row.Student != nil:
			v = row.Student.text(fs.Field)
		case row.Teacher != nil:
			v = row.Teacher.text(fs.Field)
		}
		if v != nil && utf8.RuneCountInString(*v) > fs.MaxLen {
			out = append(out, fs)
		}
	}
	return out
}
