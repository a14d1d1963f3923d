package certificateValidator

import (
	"campuscert/chain"
	"campuscert/middleware"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidate()

// newValidate reports fields by their JSON names.
func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// IssueRequest is the completion request body. Name, email and wallet fall
// back to the caller's profile when omitted.
type IssueRequest struct {
	CourseID      int    `json:"courseId" validate:"required,gt=0"`
	CourseTitle   string `json:"courseTitle" validate:"required,min=3,max=200"`
	StudentName   string `json:"studentName" validate:"omitempty,max=120"`
	StudentEmail  string `json:"studentEmail" validate:"omitempty,email"`
	WalletAddress string `json:"walletAddress" validate:"omitempty,eth_addr"`
}

var fieldMessages = map[string]string{
	"courseId":      "Course ID must be greater than 0!",
	"courseTitle":   "Course title must be between 3 and 200 characters!",
	"studentName":   "Student name is too long!",
	"studentEmail":  "Student email is invalid!",
	"walletAddress": "Wallet address must be a 0x-prefixed 40 hex character address!",
}

func IssueCertificate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(IssueRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		reqData.CourseTitle = strings.TrimSpace(reqData.CourseTitle)
		reqData.StudentName = strings.TrimSpace(reqData.StudentName)
		reqData.StudentEmail = strings.TrimSpace(reqData.StudentEmail)
		reqData.WalletAddress = strings.TrimSpace(reqData.WalletAddress)

		if errors := validationErrors(reqData); len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedIssue", reqData)
		return c.Next()
	}
}

func CertificateList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Page  int `query:"page" validate:"omitempty,gte=1"`
			Limit int `query:"limit" validate:"omitempty,gte=1,lte=100"`
		})

		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid query parameters!", nil)
		}
		if err := validate.Struct(reqData); err != nil {
			return middleware.ValidationErrorResponse(c, map[string]string{
				"pagination": "Page must be at least 1 and limit between 1 and 100!",
			})
		}

		if reqData.Page == 0 {
			reqData.Page = 1
		}
		if reqData.Limit == 0 {
			reqData.Limit = 20
		}
		c.Locals("page", reqData.Page)
		c.Locals("limit", reqData.Limit)
		return c.Next()
	}
}

func ExplorerLink() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tx := c.Params("tx")
		if !chain.IsTxHash(tx) {
			return middleware.ValidationErrorResponse(c, map[string]string{
				"tx": "Transaction id must be 0x followed by 64 hex characters!",
			})
		}
		c.Locals("txHash", tx)
		return c.Next()
	}
}

func validationErrors(req *IssueRequest) map[string]string {
	errors := make(map[string]string)
	err := validate.Struct(req)
	if err == nil {
		return errors
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errors["request"] = "Invalid request!"
		return errors
	}
	for _, fe := range verrs {
		errors[fe.Field()] = fieldMessages[fe.Field()]
	}
	return errors
}
