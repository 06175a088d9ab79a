package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *APIV1Service) getJob(c echo.Context) error {
	job, ok := s.Queues.GetJob(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, job)
}

func (s *APIV1Service) downloadReport(c echo.Context) error {
	path, err := s.Reports.ArtifactPath(c.Param("filename"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.File(path)
}

func (s *APIV1Service) verifyEmail(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token is required")
	}
	activated, err := s.Schedules.VerifyEmail(c.Request().Context(), token)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"verified":            true,
		"activated_schedules": activated,
	})
}
