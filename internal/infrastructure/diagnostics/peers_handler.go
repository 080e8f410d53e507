package diagnostics

import (
	"net/http"

	"a2dpmgr/internal/core/domain"
	"a2dpmgr/internal/core/ports"
	"a2dpmgr/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PeersHandler serves the §6 CLI/dump surface over HTTP: every admitted
// peer's PeerDump for a role, or a single peer's dump by address.
type PeersHandler struct {
	api   ports.Api
	cache ports.DiagnosticCache
	log   *zap.SugaredLogger
}

// NewPeersHandler wires the live Api dump plus an optional DiagnosticCache
// fallback (C6+storage): ListPeers always writes the fresh dump through to
// cache, and GetPeer falls back to the last cached dump if the address
// isn't in the current live set (e.g. a request racing a peer's own Idle
// sweep). cache may be nil, in which case ListPeers skips the write and
// GetPeer has no fallback.
func NewPeersHandler(api ports.Api, cache ports.DiagnosticCache, log *zap.SugaredLogger) *PeersHandler {
	return &PeersHandler{api: api, cache: cache, log: log}
}

func (h *PeersHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/debug/peers", h.ListPeers)
	router.GET("/debug/peers/:address", h.GetPeer)
}

func parseRole(c *gin.Context) (domain.RoleKind, bool) {
	switch c.DefaultQuery("role", "source") {
	case "source":
		return domain.RoleSource, true
	case "sink":
		return domain.RoleSink, true
	default:
		return domain.RoleSource, false
	}
}

// ListPeers returns every admitted peer's dump for ?role=source|sink.
func (h *PeersHandler) ListPeers(c *gin.Context) {
	role, ok := parseRole(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be 'source' or 'sink'"})
		return
	}

	dump := h.api.Dump(c.Request.Context(), role)
	if h.cache != nil {
		if err := h.cache.Put(c.Request.Context(), role.String(), dump); err != nil {
			h.log.Warnw("diagnostic cache put failed", "role", role, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"role":  role.String(),
		"peers": dump,
	})
}

// GetPeer returns one peer's dump by address, or 404 if not admitted and
// not present in the last cached dump either.
func (h *PeersHandler) GetPeer(c *gin.Context) {
	role, ok := parseRole(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be 'source' or 'sink'"})
		return
	}

	addressParam := c.Param("address")
	if err := validation.ValidateAddress(addressParam); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	address := domain.Address(addressParam)

	dump := h.api.Dump(c.Request.Context(), role)
	for _, p := range dump {
		if p.Address == address {
			c.JSON(http.StatusOK, p)
			return
		}
	}

	if h.cache != nil {
		cached, err := h.cache.Get(c.Request.Context(), role.String())
		if err != nil {
			h.log.Warnw("diagnostic cache get failed", "role", role, "error", err)
		}
		for _, p := range cached {
			if p.Address == address {
				c.JSON(http.StatusOK, p)
				return
			}
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": "peer not found"})
}
