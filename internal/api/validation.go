package api

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/Santi4567/Akima-sub001/internal/apperr"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	errInvalidJSON     = apperr.BadRequest("JSON_INVALIDO", "El cuerpo de la petición no es JSON válido")
	errUnknownField    = apperr.BadRequest("CAMPOS_NO_PERMITIDOS", "La petición contiene campos no permitidos")
	errWrongType       = apperr.BadRequest("TIPO_INVALIDO", "Un campo tiene un tipo de dato incorrecto")
	errMissingFields   = apperr.BadRequest("CAMPOS_REQUERIDOS", "Faltan campos obligatorios")
	errInvalidValue    = apperr.BadRequest("VALOR_INVALIDO", "Un campo tiene un valor no permitido")
	errInvalidID       = apperr.BadRequest("ID_INVALIDO", "El identificador debe ser un entero positivo")
	errInvalidCursor   = apperr.BadRequest("CURSOR_INVALIDO", "El cursor de paginación no es válido")
	errInvalidQueryArg = apperr.BadRequest("PARAMETRO_INVALIDO", "Parámetro de consulta no válido")
)

var registerTagNames sync.Once

// useJSONFieldNames makes validator report fields by their json name.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})
	})
}

// bindJSON decodes the body into obj rejecting unknown fields, then runs the
// binding tags. Every failure is reported as a categorical 400.
func bindJSON(c *gin.Context, obj any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(obj); err != nil {
		return decodeError(err)
	}
	// Only whitespace may follow the object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}

	return validationOf(obj)
}

func decodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &syntaxErr):
		return errInvalidJSON
	case errors.As(err, &typeErr):
		return errWrongType.With("field", typeErr.Field)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return errUnknownField.With("field", field)
	default:
		// Custom unmarshalers such as decimal.Decimal report their own errors.
		return errWrongType
	}
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errInvalidValue
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}

	if len(missing) > 0 {
		return errMissingFields.With("fields", missing)
	}
	return errInvalidValue.With("fields", invalid)
}

func idParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID.With("param", name)
	}
	return id, nil
}

// optionalID reads a positive integer query parameter; absent means nil.
func optionalID(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errInvalidQueryArg.With("param", name)
	}
	return &id, nil
}

// pageQuery reads page and page_size; bad values fall back to defaults.
func pageQuery(c *gin.Context) store.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	return store.Page{Page: page, PageSize: pageSize}.Normalize()
}

// validationOf runs the binding tags of obj.
func validationOf(obj any) error {
	if err := binding.Validator.ValidateStruct(obj); err != nil {
		return validationError(err)
	}
	return nil
}
