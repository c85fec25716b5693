package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"qawafel-crm/internal/events"
	"qawafel-crm/internal/importer"
	"qawafel-crm/pkg/database"
	"qawafel-crm/pkg/logger"
)

// maxUploadSize bounds imported files
const maxUploadSize = 10 << 20

var errUploadTooLarge = errors.New("file is too large")

// CSVUploadRequest carries CSV text in a JSON body
type CSVUploadRequest struct {
	CSV string `json:"csv"`
}

// uploadedRows reads rows from a raw CSV body, a JSON {csv} body or a
// multipart "file" field holding a .csv or .xlsx file
func uploadedRows(c echo.Context) ([]importer.Row, error) {
	req := c.Request()
	contentType := strings.ToLower(req.Header.Get(echo.HeaderContentType))

	switch {
	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		file, err := c.FormFile("file")
		if err != nil {
			return nil, errors.New("file is required")
		}
		if file.Size > maxUploadSize {
			return nil, errUploadTooLarge
		}
		src, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()
		return importer.Parse(file.Filename, src)

	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		var body CSVUploadRequest
		if err := c.Bind(&body); err != nil {
			return nil, errors.New("invalid request data")
		}
		if len(body.CSV) > maxUploadSize {
			return nil, errUploadTooLarge
		}
		return importer.ParseCSV(strings.NewReader(body.CSV))

	default:
		// one byte past the limit tells a full body from a cut one
		raw, err := io.ReadAll(io.LimitReader(req.Body, maxUploadSize+1))
		if err != nil {
			return nil, err
		}
		if len(raw) > maxUploadSize {
			return nil, errUploadTooLarge
		}
		return importer.ParseCSV(bytes.NewReader(raw))
	}
}

// ImportRecords upserts uploaded rows into leads, customers or merchants
func ImportRecords(c echo.Context) error {
	log := logger.FromEcho(c)

	entity, err := importer.ParseEntity(c.Param("entity"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Unknown import type"})
	}

	rows, err := uploadedRows(c)
	if err != nil {
		log.Warn("Failed to read upload", zap.String("entity", string(entity)), zap.Error(err))
		switch {
		case errors.Is(err, errUploadTooLarge):
			return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "File is too large"})
		case errors.Is(err, importer.ErrEmptyFile):
			return badRequest(c, "The uploaded file is empty")
		}
		return badRequest(c, fmt.Sprintf("Failed to read file: %v", err))
	}

	res, err := importer.New(database.GetDB()).Import(logger.RequestContext(c), entity, rows)
	if err != nil {
		log.Error("Import failed", zap.String("entity", string(entity)), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Import failed"})
	}

	recordActivity(c, string(entity), events.TypeImported, 0,
		fmt.Sprintf("Imported %d and updated %d %s", res.Imported, res.Updated, entity), "upload")
	return c.JSON(http.StatusOK, res)
}

// ExportRecords downloads every lead, customer or merchant as CSV or XLSX
func ExportRecords(c echo.Context) error {
	log := logger.FromEcho(c)

	entity, err := importer.ParseEntity(c.Param("entity"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Unknown export type"})
	}
	format, err := importer.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return badRequest(c, "Unsupported format")
	}

	var buf bytes.Buffer
	err = importer.New(database.GetDB()).Export(logger.RequestContext(c), entity, format, &buf)
	if err != nil {
		log.Error("Export failed", zap.String("entity", string(entity)), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Export failed"})
	}

	filename := fmt.Sprintf("%s-%s.%s", entity, time.Now().Format("20060102"), format)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, format.ContentType(), buf.Bytes())
}
