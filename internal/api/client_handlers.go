package api

import (
	"time"

	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/gin-gonic/gin"
)

type createClientRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Email   string `json:"email" binding:"omitempty,email"`
	Phone   string `json:"phone" binding:"omitempty,max=50"`
	Address string `json:"address"`
}

type updateClientRequest struct {
	Name    *string `json:"name" binding:"omitempty,min=1,max=200"`
	Email   *string `json:"email" binding:"omitempty,email"`
	Phone   *string `json:"phone" binding:"omitempty,max=50"`
	Address *string `json:"address"`
}

func (s *Server) createClient(c *gin.Context) {
	var req createClientRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	client, err := store.CreateClient(c.Request.Context(), s.db, store.ClientInput{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		CreatedBy: currentUser(c).ID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	created(c, "Cliente creado", client)
}

func (s *Server) listClients(c *gin.Context) {
	page, err := store.ListClients(c.Request.Context(), s.db, c.Query("search"), pageQuery(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, page)
}

func (s *Server) getClient(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	client, err := store.GetClient(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, client)
}

func (s *Server) updateClient(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	var req updateClientRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	client, err := store.UpdateClient(c.Request.Context(), s.db, id, store.ClientUpdate{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, client)
}

func (s *Server) deleteClient(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	if err := store.DeleteClient(c.Request.Context(), s.db, id); err != nil {
		s.fail(c, err)
		return
	}

	message(c, "Cliente eliminado")
}

// listClientOrders pages a client's history with an opaque cursor taken from
// the previous page's next_cursor.
func (s *Server) listClientOrders(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := store.GetClient(ctx, s.db, id); err != nil {
		s.fail(c, err)
		return
	}

	cursor := c.Query("cursor")
	if cursor != "" {
		if _, err := store.DecodeCursor(cursor); err != nil {
			s.fail(c, errInvalidCursor)
			return
		}
	}

	page, err := store.ListClientOrdersCursor(ctx, s.db, id, cursor, pageQuery(c).PageSize)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, page)
}

type createVisitRequest struct {
	ClientID  int64      `json:"client_id" binding:"required,gt=0"`
	VisitDate *time.Time `json:"visit_date"`
	Notes     string     `json:"notes"`
}

func (s *Server) createVisit(c *gin.Context) {
	var req createVisitRequest
	if err := bindJSON(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	visitDate := time.Now()
	if req.VisitDate != nil {
		visitDate = *req.VisitDate
	}

	visit, err := store.CreateVisit(c.Request.Context(), s.db, store.VisitInput{
		ClientID:  req.ClientID,
		UserID:    currentUser(c).ID,
		VisitDate: visitDate,
		Notes:     req.Notes,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	created(c, "Visita registrada", visit)
}

func (s *Server) listVisits(c *gin.Context) {
	clientID, err := optionalID(c, "client_id")
	if err != nil {
		s.fail(c, err)
		return
	}
	userID, err := optionalID(c, "user_id")
	if err != nil {
		s.fail(c, err)
		return
	}

	page, err := store.ListVisits(c.Request.Context(), s.db, store.VisitFilter{
		ClientID: clientID,
		UserID:   userID,
		Page:     pageQuery(c),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, page)
}

func (s *Server) getVisit(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	visit, err := store.GetVisit(c.Request.Context(), s.db, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, visit)
}

func (s *Server) deleteVisit(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.fail(c, err)
		return
	}

	if err := store.DeleteVisit(c.Request.Context(), s.db, id); err != nil {
		s.fail(c, err)
		return
	}

	message(c, "Visita eliminada")
}
