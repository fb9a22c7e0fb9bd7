package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmehdipour/person-service/internal/metrics"
	"github.com/jmehdipour/person-service/internal/model"
	"github.com/jmehdipour/person-service/internal/repository"
	person "github.com/jmehdipour/person-service/internal/service/person"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

type personReq struct {
	FirstName  string  `json:"first_name"`
	MiddleName *string `json:"middle_name"`
	LastName   string  `json:"last_name"`
	Suffix     *string `json:"suffix"`
}

func (r *personReq) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	if r.MiddleName != nil {
		m := strings.TrimSpace(*r.MiddleName)
		if m == "" {
			r.MiddleName = nil
		} else {
			r.MiddleName = &m
		}
	}
	if r.Suffix != nil {
		sfx := strings.TrimSpace(*r.Suffix)
		if sfx == "" {
			r.Suffix = nil
		} else {
			r.Suffix = &sfx
		}
	}
}

func (r *personReq) valid() bool {
	return r.FirstName != "" && r.LastName != ""
}

// storageStatus maps persistence failure kinds onto HTTP codes.
func storageStatus(err error) int {
	switch repository.KindOf(err) {
	case repository.KindNotFound:
		return http.StatusNotFound
	case repository.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func createPersonHandler(svc *person.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req personReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req.normalize()
		if !req.valid() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "first_name and last_name are required"})
		}

		created, err := svc.CreatePerson(c.Request().Context(), model.NewPerson{
			FirstName:  req.FirstName,
			MiddleName: req.MiddleName,
			LastName:   req.LastName,
			Suffix:     req.Suffix,
		})
		if err != nil {
			metrics.MutationsTotal.WithLabelValues("create", "error").Inc()
			log.Errorf("create person failed: %v", err)
			return c.JSON(storageStatus(err), map[string]string{"error": "db error"})
		}

		metrics.MutationsTotal.WithLabelValues("create", "ok").Inc()
		return c.JSON(http.StatusCreated, created)
	}
}

func getPersonHandler(svc *person.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
		}

		p, err := svc.GetPerson(c.Request().Context(), id)
		if err != nil {
			log.Errorf("get person failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if p == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}
		return c.JSON(http.StatusOK, p)
	}
}

func listPersonsHandler(svc *person.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 50
		offset := 0
		if v := c.QueryParam("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= repository.MaxListLimit {
				limit = n
			}
		}
		if v := c.QueryParam("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		persons, err := svc.ListPersons(c.Request().Context(), offset, limit)
		if err != nil {
			log.Errorf("list persons failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, persons)
	}
}

func updatePersonHandler(svc *person.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
		}

		var req personReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		req.normalize()
		if !req.valid() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "first_name and last_name are required"})
		}

		updated, err := svc.UpdatePerson(c.Request().Context(), model.Person{
			ID:         id,
			FirstName:  req.FirstName,
			MiddleName: req.MiddleName,
			LastName:   req.LastName,
			Suffix:     req.Suffix,
		})
		if err != nil {
			metrics.MutationsTotal.WithLabelValues("update", "error").Inc()
			if repository.IsNotFound(err) {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
			}
			log.Errorf("update person failed: %v", err)
			return c.JSON(storageStatus(err), map[string]string{"error": "db error"})
		}

		metrics.MutationsTotal.WithLabelValues("update", "ok").Inc()
		return c.JSON(http.StatusOK, updated)
	}
}

func deletePersonHandler(svc *person.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
		}

		deleted, err := svc.DeletePerson(c.Request().Context(), id)
		if err != nil {
			metrics.MutationsTotal.WithLabelValues("delete", "error").Inc()
			log.Errorf("delete person failed: %v", err)
			return c.JSON(storageStatus(err), map[string]string{"error": "db error"})
		}

		metrics.MutationsTotal.WithLabelValues("delete", "ok").Inc()
		if !deleted {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
		}
		return c.NoContent(http.StatusNoContent)
	}
}
