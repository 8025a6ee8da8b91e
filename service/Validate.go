package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"raffle-service/utils"
)

var Validate = validator.New()

func init() {
	if err := Validate.RegisterValidation("regex", utils.RegexValidation); err != nil {
		utils.LogMessage(utils.CRITICAL, "Init: Error registering regex validation", "service")
		panic("Init: Error registering regex validation")
	}
}

func validateStruct(v interface{}) error {
	if err := Validate.Struct(v); err != nil {
		return &ValidationError{Message: *utils.ValidateStructText(err)}
	}
	return nil
}

// NormalizeNumber maps "7", "07" or "007" to the stored two-digit form; 100 stays "100".
func NormalizeNumber(raw string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > 100 {
		return "", &ValidationError{Field: "numbers", Message: fmt.Sprintf("%q is not a number between 01 and 100", raw)}
	}
	return fmt.Sprintf("%02d", n), nil
}
