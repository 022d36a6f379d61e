package devicesim

import (
	"errors"
	"net/http"

	"battery_dashboard/internal/logger"
	"battery_dashboard/internal/models"

	"github.com/gin-gonic/gin"
)

// Handler serves the device REST API from a Simulator.
type Handler struct {
	sim *Simulator
	log *logger.Logger
}

func NewHandler(sim *Simulator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{sim: sim, log: log}
}

// InitRoutes builds the device router under /api.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.GET("/battery", h.battery)
		api.GET("/logs", h.logs)
		api.POST("/ssr", h.ssr)
		api.GET("/mode", h.getMode)
		api.POST("/mode", h.setMode)
		api.POST("/relay/auto-shutoff", h.autoShutoff)

		sim := api.Group("/sim")
		sim.GET("/faults", h.getFaults)
		sim.PUT("/faults", h.setFaults)
	}
	return router
}

type ssrRequest struct {
	State string `json:"state" binding:"required,oneof=on off"`
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type autoShutoffRequest struct {
	Enabled   bool `json:"enabled"`
	Threshold int  `json:"threshold"`
}

func (h *Handler) battery(c *gin.Context) {
	if h.sim.Faults().BatteryDown {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "battery sensor unavailable"})
		return
	}
	c.JSON(http.StatusOK, h.sim.Reading())
}

func (h *Handler) logs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"logs": h.sim.Logs()})
}

func (h *Handler) ssr(c *gin.Context) {
	if code := h.sim.Faults().RelayHTTPStatus; code != 0 {
		c.Status(code)
		return
	}
	var req ssrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"result": gin.H{"success": false, "error": err.Error()}})
		return
	}
	if err := h.sim.SetRelay(req.State == "on", models.ActorAdmin); err != nil {
		c.JSON(http.StatusOK, gin.H{"result": gin.H{"success": false, "error": faultReason(err)}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": gin.H{"success": true}})
}

func (h *Handler) getMode(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mode": h.sim.Mode()})
}

func (h *Handler) setMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	mode, ok := models.ParseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown mode " + req.Mode})
		return
	}
	if err := h.sim.SetMode(mode); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "result": gin.H{"error": faultReason(err)}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": gin.H{"mode": mode}})
}

func (h *Handler) autoShutoff(c *gin.Context) {
	var req autoShutoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	h.sim.SetAutoShutoff(req.Enabled, req.Threshold)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) getFaults(c *gin.Context) {
	c.JSON(http.StatusOK, h.sim.Faults())
}

func (h *Handler) setFaults(c *gin.Context) {
	var f Faults
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.sim.SetFaults(f)
	c.JSON(http.StatusOK, f)
}

func faultReason(err error) string {
	var fe *FaultError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return err.Error()
}
