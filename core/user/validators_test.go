package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edugest/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func Test_checkPassword(t *testing.T) {
	LoadCommonPasswords(nopLogger{})

	tests := []struct {
		name  string
		pwd   string
		attrs []string
		want  string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123!", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no upper", pwd: "abcd1234!", want: pwdComplexityTag},
		{name: "no special", pwd: "Abcd12345", want: pwdComplexityTag},
		{name: "similar to name", pwd: "Awa.Diop1", attrs: []string{"Awa Diop"}, want: pwdAttrSimTag},
		{name: "similar to email", pwd: "Adiop2024!", attrs: []string{"adiop2024@school.sn"}, want: pwdAttrSimTag},
		{name: "common", pwd: "Password1!", want: pwdNoCommonTag},
		{name: "valid", pwd: "Kx7#mQ2!vL", attrs: []string{"Awa Diop", "awa@school.sn"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkPassword(tt.pwd, tt.attrs...))
		})
	}
}

func TestNewUserValidation(t *testing.T) {
	validate := validator.New()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	nu := NewUser{
		FullName:        "Awa Diop",
		Email:           "awa@school.sn",
		Password:        "Kx7#mQ2!vL",
		PasswordConfirm: "Kx7#mQ2!vL",
		Role:            RoleAccountant,
	}
	require.NoError(t, validate.Struct(nu))

	nu.Role = "janitor"
	err := validate.Struct(nu)
	require.Error(t, err)
	vErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, "role", vErrs[0].Field())
	assert.Equal(t, allRolesText, vErrs[0].Translate(translator))

	nu.Role = ""
	nu.Password, nu.PasswordConfirm = "weak", "weak"
	err = validate.Struct(nu)
	require.Error(t, err)
	assert.Equal(t, pwdMinLenText, err.(validator.ValidationErrors)[0].Translate(translator))
}
