package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"concierge/internal/clientfs"
	"concierge/internal/metrics"
	"concierge/internal/protocol"
)

// fsRequest extracts the key header, owner name and subpath from one file
// endpoint request.
func fsRequest(c echo.Context) (uuid.UUID, string, string, error) {
	metrics.FSRequests.WithLabelValues(c.Request().Method).Inc()

	raw := strings.TrimSpace(c.Request().Header.Get(protocol.FSKeyHeader))
	if raw == "" {
		return uuid.Nil, "", "", echo.NewHTTPError(http.StatusUnauthorized, protocol.FSKeyHeader+" header is required")
	}
	key, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", "", echo.NewHTTPError(http.StatusUnauthorized, "malformed "+protocol.FSKeyHeader+" header")
	}
	return key, c.Param("name"), c.Param("*"), nil
}

func (s *Server) handleFileGet(c echo.Context) error {
	key, owner, subpath, err := fsRequest(c)
	if err != nil {
		return err
	}

	result, err := s.files.Open(key, owner, subpath)
	if err != nil {
		return fsHTTPError(err)
	}
	defer result.File.Close()

	c.Response().Header().Set(echo.HeaderContentType, "application/octet-stream")
	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(result.Size, 10))
	c.Response().Header().Set(
		echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s"`, safeFilename(result.Name)),
	)
	c.Response().WriteHeader(http.StatusOK)
	_, copyErr := io.Copy(c.Response().Writer, result.File)
	return copyErr
}

func (s *Server) handleFilePut(c echo.Context) error {
	key, owner, subpath, err := fsRequest(c)
	if err != nil {
		return err
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		return s.putMultipart(c, key, owner, subpath)
	}

	if _, err := s.files.Put(key, owner, subpath, c.Request().Body); err != nil {
		return fsHTTPError(err)
	}
	return c.NoContent(http.StatusCreated)
}

// putMultipart writes every file part of a multipart form. A part with a
// filename lands next to the requested path under that filename.
func (s *Server) putMultipart(c echo.Context, key uuid.UUID, owner, subpath string) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("parse multipart form: %v", err))
	}

	for _, headers := range form.File {
		for _, header := range headers {
			target := subpath
			if header.Filename != "" {
				target = path.Join(path.Dir(subpath), header.Filename)
			}
			src, err := header.Open()
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("open uploaded part: %v", err))
			}
			_, putErr := s.files.Put(key, owner, target, src)
			src.Close()
			if putErr != nil {
				return fsHTTPError(putErr)
			}
		}
	}
	return c.NoContent(http.StatusCreated)
}

func (s *Server) handleFileDelete(c echo.Context) error {
	key, owner, subpath, err := fsRequest(c)
	if err != nil {
		return err
	}
	if err := s.files.Delete(key, owner, subpath); err != nil {
		return fsHTTPError(err)
	}
	return c.NoContent(http.StatusOK)
}

// fsHTTPError maps clientfs sentinels to HTTP statuses.
func fsHTTPError(err error) error {
	switch {
	case errors.Is(err, clientfs.ErrEncoding):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, clientfs.ErrBadAuthorization):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, clientfs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, clientfs.ErrFileNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, clientfs.ErrNotAFile):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func safeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "file"
	}
	name = strings.ReplaceAll(name, `"`, "_")
	name = strings.ReplaceAll(name, "\\", "_")
	return name
}
