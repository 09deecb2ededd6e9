package validation

// Registration - поля формы регистрации.
type Registration struct {
	Email     string
	Password  string
	Username  string
	FirstName *string
	LastName  *string
}

// ValidateRegistration возвращает ошибки по всем полям сразу.
func ValidateRegistration(r Registration) Errors {
	errs := Errors{}
	errs.Add("email", ValidateEmail(r.Email))
	errs.Add("password", ValidatePassword(r.Password))
	errs.Add("username", ValidateUsername(r.Username))
	errs.Add("firstName", ValidateName("First name", r.FirstName))
	errs.Add("lastName", ValidateName("Last name", r.LastName))
	return errs
}
