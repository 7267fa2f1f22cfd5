package handler

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	handleRe     = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	registerOnce sync.Once
)

// RegisterValidators 给 gin 的 validator 注册自定义规则：handle 只允许字母数字下划线
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
			return handleRe.MatchString(fl.Field().String())
		})
	})
}
