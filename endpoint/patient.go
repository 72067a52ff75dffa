package endpoint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ariebrainware/medelle-reminder/middleware"
	"github.com/ariebrainware/medelle-reminder/model"
	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/gin-gonic/gin"
)

type createPatientRequest struct {
	Name       string `json:"name" example:"Ana Souza"`
	Contact    string `json:"contact" example:"+55 11 98888-7777"`
	Email      string `json:"email" example:"ana@example.com"`
	Procedure  string `json:"procedure" example:"Limpeza de pele"`
	ReturnDate string `json:"returnDate" example:"2026-10-20"`
}

func (r createPatientRequest) toRecord() model.PatientRecord {
	return model.PatientRecord{
		Name:       util.NormalizeName(r.Name),
		Contact:    strings.TrimSpace(r.Contact),
		Email:      strings.TrimSpace(r.Email),
		Procedure:  strings.TrimSpace(r.Procedure),
		ReturnDate: strings.TrimSpace(r.ReturnDate),
	}
}

func storeUnavailable(c *gin.Context) {
	util.CallServerError(c, util.APIErrorParams{
		Msg: "Armazenamento indisponível",
		Err: fmt.Errorf("store is nil"),
	})
}

// ListPatients godoc
// @Summary      List follow-up records
// @Description  Every record, sorted by ascending return date
// @Tags         Patient
// @Produce      json
// @Success      200 {object} util.APIResponse{data=[]model.PatientRecord} "Records retrieved"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /api/pacientes [get]
func ListPatients(c *gin.Context) {
	s := middleware.GetStore(c)
	if s == nil {
		storeUnavailable(c)
		return
	}

	records, err := s.List(c.Request.Context())
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Falha ao carregar pacientes",
			Err: err,
		})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Pacientes carregados",
		Data: records,
	})
}

// CreatePatient godoc
// @Summary      Create a follow-up record
// @Description  The server assigns the id. name, email and returnDate (YYYY-MM-DD) are required.
// @Tags         Patient
// @Accept       json
// @Produce      json
// @Param        request body createPatientRequest true "Record"
// @Success      201 {object} util.APIResponse{data=object} "Record created"
// @Failure      400 {object} util.APIResponse "Incomplete data"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /api/pacientes [post]
func CreatePatient(c *gin.Context) {
	req := createPatientRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Dados incompletos.",
			Err: err,
		})
		return
	}

	record := req.toRecord()
	if err := record.Validate(); err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Dados incompletos.",
			Err: err,
		})
		return
	}

	s := middleware.GetStore(c)
	if s == nil {
		storeUnavailable(c)
		return
	}

	id, err := s.Append(c.Request.Context(), &record)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Falha ao salvar paciente",
			Err: err,
		})
		return
	}

	util.Logger().Info().Int64("record_id", id).Str("patient", util.SanitizeLogValue(record.Name)).
		Str("return_date", record.ReturnDate).Msg("patient record created")
	util.CallSuccessCreated(c, util.APISuccessParams{
		Msg:  "Sucesso",
		Data: map[string]interface{}{"id": id},
	})
}

// DeletePatient godoc
// @Summary      Delete a follow-up record
// @Description  Succeeds whether or not the id exists; data.removed tells which.
// @Tags         Patient
// @Produce      json
// @Param        id path int true "Record ID"
// @Success      200 {object} util.APIResponse{data=object} "Record removed"
// @Failure      400 {object} util.APIResponse "Invalid id"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /api/pacientes/{id} [delete]
func DeletePatient(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "ID inválido",
			Err: err,
		})
		return
	}

	s := middleware.GetStore(c)
	if s == nil {
		storeUnavailable(c)
		return
	}

	removed, err := s.Remove(c.Request.Context(), id)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Falha ao remover paciente",
			Err: err,
		})
		return
	}

	if removed {
		util.Logger().Info().Int64("record_id", id).Msg("patient record removed")
	}
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Removido",
		Data: map[string]interface{}{"removed": removed},
	})
}
