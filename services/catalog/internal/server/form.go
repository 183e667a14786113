package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"moviecatalog/services/catalog/internal/app"
)

func badRequest(msg string, err error) error {
	return &app.Error{Kind: app.KindValidation, Message: msg, Err: err}
}

// decodeBody fills dst from a JSON body or, for multipart requests, from the
// form values named by dst's json tags. Multipart file parts are returned by
// field name.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) (map[string]*multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, err
			}
			return nil, badRequest("invalid form data", err)
		}
		if err := formInto(r.MultipartForm.Value, dst); err != nil {
			return nil, err
		}
		files := make(map[string]*multipart.FileHeader, len(r.MultipartForm.File))
		for field, headers := range r.MultipartForm.File {
			if len(headers) > 0 {
				files[field] = headers[0]
			}
		}
		return files, nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		if errors.Is(err, io.EOF) {
			return nil, badRequest("request body is required", err)
		}
		return nil, badRequest("invalid JSON body", err)
	}
	return nil, nil
}

// formInto copies form values onto the json-tagged fields of the struct dst
// points to. Slice fields take either repeated values or one JSON array.
// Blank values of non-string fields are ignored.
func formInto(values map[string][]string, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("form target must be a struct pointer, got %T", dst)
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		name := strings.SplitN(rt.Field(i).Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		raw := values[name]
		if len(raw) == 0 {
			continue
		}
		field := rv.Field(i)
		target := field.Type()
		if target.Kind() == reflect.Pointer {
			target = target.Elem()
		}
		if target.Kind() != reflect.String && strings.TrimSpace(raw[0]) == "" {
			continue
		}
		v := reflect.New(target).Elem()
		if err := setFormValue(v, raw); err != nil {
			return badRequest(fmt.Sprintf("%s is invalid", name), err)
		}
		if field.Kind() == reflect.Pointer {
			ptr := reflect.New(target)
			ptr.Elem().Set(v)
			field.Set(ptr)
		} else {
			field.Set(v)
		}
	}
	return nil
}

func setFormValue(v reflect.Value, raw []string) error {
	first := strings.TrimSpace(raw[0])
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw[0])
	case reflect.Bool:
		b, err := strconv.ParseBool(first)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(first, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(first, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", v.Type())
		}
		items := []string{}
		if len(raw) == 1 && strings.HasPrefix(first, "[") {
			if err := json.Unmarshal([]byte(first), &items); err != nil {
				return err
			}
		} else {
			for _, item := range raw {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
		}
		v.Set(reflect.ValueOf(items).Convert(v.Type()))
	default:
		return fmt.Errorf("unsupported field type %s", v.Type())
	}
	return nil
}
