package controllers

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/google/uuid"

    "github.com/zaqqye/firmsheet/internal/metrics"
    "github.com/zaqqye/firmsheet/internal/models"
    "github.com/zaqqye/firmsheet/internal/ws"
)

const saveConfirmation = "<h3>✅ Data saved successfully!</h3><a href='/'>Go Back</a>"

var errMissingField = errors.New("missing form field")

type FirmStore interface {
    Save(ctx context.Context, rec models.FirmRecord) error
    Load(ctx context.Context) (models.FirmRecord, error)
}

type Broadcaster interface {
    Broadcast(msg ws.FirmSavedMessage)
}

type FirmController struct {
    Store    FirmStore
    FormFile string
    Hub      Broadcaster
    Metrics  *metrics.Metrics
}

// FormPage serves the form file exactly as it is on disk.
func (fc *FirmController) FormPage(c *gin.Context) {
    body, err := os.ReadFile(fc.FormFile)
    if err != nil {
        fc.fail(c, http.StatusInternalServerError, err)
        return
    }
    c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

// Save overwrites the stored record with the four posted fields. All four
// keys must be present; empty values are accepted.
func (fc *FirmController) Save(c *gin.Context) {
    rec, err := bindFirmForm(c)
    if err != nil {
        fc.Metrics.ObserveSave("bad_request")
        fc.fail(c, http.StatusBadRequest, err)
        return
    }

    if err := fc.Store.Save(c.Request.Context(), rec); err != nil {
        fc.Metrics.ObserveSave("error")
        fc.fail(c, http.StatusInternalServerError, err)
        return
    }
    fc.Metrics.ObserveSave("ok")

    if fc.Hub != nil {
        fc.Hub.Broadcast(ws.FirmSavedMessage{
            ID:      uuid.NewString(),
            Record:  rec,
            SavedAt: time.Now().UTC(),
        })
    }
    c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(saveConfirmation))
}

// Get returns the stored record as JSON.
func (fc *FirmController) Get(c *gin.Context) {
    rec, err := fc.Store.Load(c.Request.Context())
    if err != nil {
        c.Error(err)
        c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read firm record"})
        return
    }
    c.JSON(http.StatusOK, rec)
}

func bindFirmForm(c *gin.Context) (models.FirmRecord, error) {
    vals := make([]string, 0, len(models.FirmFields))
    for _, fld := range models.FirmFields {
        v, ok := c.GetPostForm(fld.FormKey)
        if !ok {
            return models.FirmRecord{}, fmt.Errorf("%w: %s", errMissingField, fld.FormKey)
        }
        vals = append(vals, v)
    }
    return models.FirmRecordFromValues(vals), nil
}

func (fc *FirmController) fail(c *gin.Context, status int, err error) {
    // Detail goes to the request log via c.Errors; the body stays generic.
    c.Error(err)
    c.Data(status, "text/html; charset=utf-8", []byte(fmt.Sprintf("<h1>%d %s</h1>", status, http.StatusText(status))))
}
