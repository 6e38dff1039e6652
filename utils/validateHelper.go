package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs validator/v10 tags on a request/config struct.
func ValidateStruct(input interface{}) error {
	return validate.Struct(input)
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

// check if a matching row exists, return RecordNotFound error
func ValidateResourceWhere[T any](ctx context.Context, cond string, values ...interface{}) error {
	count, err := ResourceCountWhere[T](ctx, cond, values...)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ResourceCountWhere[T any](ctx context.Context, cond string, values ...interface{}) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).Where(cond, values...).Count(&count).Error
	return count, err
}
