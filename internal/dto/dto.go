// Package dto holds the typed request bodies of the HTTP API. Shape checks live
// in the binding tags so handlers only ever see validated input.
package dto

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/startsmart/internal/data"
	"github.com/PaulBabatuyi/startsmart/internal/negotiation"
)

var registerOnce sync.Once

// Register installs the custom rules and JSON field naming on gin's validator.
// It is safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			_, err := bson.ObjectIDFromHex(fl.Field().String())
			return err == nil
		})
		v.RegisterStructValidation(validateSendMessage, SendMessageRequest{})
	})
}

// ProposalTerms are the numbers attached to a proposal message.
type ProposalTerms struct {
	Amount    float64 `json:"amount" binding:"gte=0"`
	Equity    float64 `json:"equity" binding:"gte=0,lte=100"`
	Valuation float64 `json:"valuation" binding:"gte=0"`
}

// SendMessageRequest is the body of POST /api/negotiation/funding/:fundingRequestId.
type SendMessageRequest struct {
	Content      string         `json:"content" binding:"required_unless=MessageType system,max=2000"`
	MessageType  string         `json:"messageType" binding:"omitempty,oneof=text proposal system"`
	ProposalData *ProposalTerms `json:"proposalData" binding:"-"`
}

// validateSendMessage checks the terms of proposal messages only. Terms sent
// with any other type are dropped by Input.
func validateSendMessage(sl validator.StructLevel) {
	req := sl.Current().Interface().(SendMessageRequest)
	if req.MessageType != string(data.MessageProposal) || req.ProposalData == nil {
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(sl.Validator().Struct(req.ProposalData), &verrs) {
		return
	}
	for _, fe := range verrs {
		sl.ReportError(fe.Value(), "proposalData."+fe.Field(), "ProposalData."+fe.StructField(), fe.Tag(), fe.Param())
	}
}

// Input converts the request for the negotiation service.
func (r SendMessageRequest) Input() negotiation.SendInput {
	in := negotiation.SendInput{
		Content:     r.Content,
		MessageType: data.MessageType(r.MessageType),
	}
	if r.MessageType == string(data.MessageProposal) && r.ProposalData != nil {
		in.ProposalData = &data.ProposalData{
			Amount:    r.ProposalData.Amount,
			Equity:    r.ProposalData.Equity,
			Valuation: r.ProposalData.Valuation,
		}
	}
	return in
}

// MarkDeliveredRequest is the body of PUT .../delivered. An empty list is
// accepted and modifies nothing; the field itself must be present.
type MarkDeliveredRequest struct {
	MessageIDs []string `json:"messageIds" binding:"required,max=500,dive,objectid"`
}

// ObjectIDs parses the already validated ids.
func (r MarkDeliveredRequest) ObjectIDs() []bson.ObjectID {
	ids := make([]bson.ObjectID, 0, len(r.MessageIDs))
	for _, s := range r.MessageIDs {
		if id, err := bson.ObjectIDFromHex(s); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// PageQuery is the page/limit query string. Limits above the maximum are clamped, not rejected.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"required,oneof=entrepreneur investor"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// CreateFundingRequest is the body of POST /api/funding.
type CreateFundingRequest struct {
	IdeaID      string  `json:"ideaId" binding:"required,objectid"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Equity      float64 `json:"equity" binding:"gte=0,lte=100"`
	Description string  `json:"description" binding:"max=2000"`
}

// Input converts the request for the negotiation service.
func (r CreateFundingRequest) Input() negotiation.FundingInput {
	ideaID, _ := bson.ObjectIDFromHex(r.IdeaID)
	return negotiation.FundingInput{
		IdeaID:      ideaID,
		Amount:      r.Amount,
		Equity:      r.Equity,
		Description: strings.TrimSpace(r.Description),
	}
}

// CreateInterestRequest is the body of POST /api/interests.
type CreateInterestRequest struct {
	IdeaID string `json:"ideaId" binding:"required,objectid"`
	Note   string `json:"note" binding:"max=500"`
}

// ValidationMessages turns binding errors into field -> message pairs. The
// second result is false when err is not a validation failure (malformed JSON).
func ValidationMessages(err error) (map[string]string, bool) {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil, false
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldPath(fe)] = message(fe)
	}
	return out, true
}

// fieldPath drops the top-level struct name: "SendMessageRequest.proposalData.equity" -> "proposalData.equity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_unless":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "objectid":
		return "must be a valid id"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s items/characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at most %s items/characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("is invalid (%s)", fe.Tag())
	}
}
