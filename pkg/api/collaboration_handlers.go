package api

import (
	"net/http"

	"github.com/narissarah/wishcraft-sub004/pkg/collaboration"
	"github.com/narissarah/wishcraft-sub004/pkg/contextkeys"
	"github.com/narissarah/wishcraft-sub004/pkg/httputil"
	"github.com/narissarah/wishcraft-sub004/pkg/registry"
)

// listRegistries handles GET /api/registries. It lists the session shop's
// registries; any authenticated session qualifies, no actor identity needed.
func (s *Server) listRegistries(w http.ResponseWriter, r *http.Request) {
	shopID, ok := contextkeys.GetShopID(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	registries, err := s.config.Registries.ListByShop(r.Context(), shopID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, RegistriesResponse{
		Registries: registries,
		Count:      len(registries),
	})
}

// enableCollaboration handles POST /api/registries/{registryID}/collaboration/enable.
func (s *Server) enableCollaboration(w http.ResponseWriter, r *http.Request) {
	shopID, actorEmail, ok := requireActor(w, r)
	if !ok {
		return
	}
	registryID, ok := httputil.ParsePathInt64OrError(w, r, "registryID")
	if !ok {
		return
	}

	// An empty body enables collaboration with default settings.
	var req EnableCollaborationRequest
	if r.ContentLength != 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	}
	settings := registry.DefaultCollaborationSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	err := s.config.Collaboration.EnableCollaboration(r.Context(), shopID, registryID, actorEmail, settings)
	if err != nil {
		s.recordCollaborationOp("enable", "failure")
		writeDomainError(w, err)
		return
	}

	s.recordCollaborationOp("enable", "success")
	httputil.WriteSuccess(w, map[string]any{
		"registry_id": registryID,
		"settings":    settings,
	})
}

// disableCollaboration handles POST /api/registries/{registryID}/collaboration/disable.
// All collaborator records are cleared, active ones included.
func (s *Server) disableCollaboration(w http.ResponseWriter, r *http.Request) {
	shopID, actorEmail, ok := requireActor(w, r)
	if !ok {
		return
	}
	registryID, ok := httputil.ParsePathInt64OrError(w, r, "registryID")
	if !ok {
		return
	}

	if err := s.config.Collaboration.DisableCollaboration(r.Context(), shopID, registryID, actorEmail); err != nil {
		s.recordCollaborationOp("disable", "failure")
		writeDomainError(w, err)
		return
	}

	s.recordCollaborationOp("disable", "success")
	httputil.WriteNoContent(w)
}

// inviteCollaborator handles POST /api/registries/{registryID}/collaborators.
func (s *Server) inviteCollaborator(w http.ResponseWriter, r *http.Request) {
	shopID, actorEmail, ok := requireActor(w, r)
	if !ok {
		return
	}
	registryID, ok := httputil.ParsePathInt64OrError(w, r, "registryID")
	if !ok {
		return
	}

	var req collaboration.InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}

	collab, err := s.config.Collaboration.InviteCollaborator(r.Context(), shopID, registryID, actorEmail, req)
	if err != nil {
		s.recordCollaborationOp("invite", "failure")
		writeDomainError(w, err)
		return
	}

	s.recordCollaborationOp("invite", "success")
	httputil.WriteCreated(w, collab)
}

// listCollaborators handles GET /api/registries/{registryID}/collaborators.
func (s *Server) listCollaborators(w http.ResponseWriter, r *http.Request) {
	shopID, actorEmail, ok := requireActor(w, r)
	if !ok {
		return
	}
	registryID, ok := httputil.ParsePathInt64OrError(w, r, "registryID")
	if !ok {
		return
	}

	collaborators, err := s.config.Collaboration.ListCollaborators(r.Context(), shopID, registryID, actorEmail)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, CollaboratorsResponse{
		Collaborators: collaborators,
		Count:         len(collaborators),
	})
}

// removeCollaborator handles DELETE /api/registries/{registryID}/collaborators/{collaboratorID}.
func (s *Server) removeCollaborator(w http.ResponseWriter, r *http.Request) {
	shopID, actorEmail, ok := requireActor(w, r)
	if !ok {
		return
	}
	registryID, ok := httputil.ParsePathInt64OrError(w, r, "registryID")
	if !ok {
		return
	}
	collaboratorID, ok := httputil.ParsePathStringOrError(w, r, "collaboratorID")
	if !ok {
		return
	}

	err := s.config.Collaboration.RemoveCollaborator(r.Context(), shopID, registryID, actorEmail, collaboratorID)
	if err != nil {
		s.recordCollaborationOp("remove", "failure")
		writeDomainError(w, err)
		return
	}

	s.recordCollaborationOp("remove", "success")
	httputil.WriteNoContent(w)
}

// listActivity handles GET /api/registries/{registryID}/activity?limit=N.
func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	shopID, actorEmail, ok := requireActor(w, r)
	if !ok {
		return
	}
	registryID, ok := httputil.ParsePathInt64OrError(w, r, "registryID")
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteValidationError(w, "limit must be an integer")
		return
	}

	records, err := s.config.Collaboration.ListActivity(r.Context(), shopID, registryID, actorEmail, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, records)
}

// acceptInvitation handles POST /collaborate/accept/{collaboratorID}. The
// acceptor identity comes from the session, never from the request body.
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	_, actorEmail, ok := requireActor(w, r)
	if !ok {
		return
	}
	collaboratorID, ok := httputil.ParsePathStringOrError(w, r, "collaboratorID")
	if !ok {
		return
	}

	collab, err := s.config.Collaboration.AcceptInvitation(r.Context(), collaboratorID, actorEmail)
	if err != nil {
		s.recordCollaborationOp("accept", "failure")
		writeDomainError(w, err)
		return
	}

	s.recordCollaborationOp("accept", "success")
	httputil.WriteSuccess(w, collab)
}

// declineInvitation handles POST /collaborate/decline/{collaboratorID}.
func (s *Server) declineInvitation(w http.ResponseWriter, r *http.Request) {
	_, actorEmail, ok := requireActor(w, r)
	if !ok {
		return
	}
	collaboratorID, ok := httputil.ParsePathStringOrError(w, r, "collaboratorID")
	if !ok {
		return
	}

	if err := s.config.Collaboration.DeclineInvitation(r.Context(), collaboratorID, actorEmail); err != nil {
		s.recordCollaborationOp("decline", "failure")
		writeDomainError(w, err)
		return
	}

	s.recordCollaborationOp("decline", "success")
	httputil.WriteNoContent(w)
}

func (s *Server) recordCollaborationOp(operation, outcome string) {
	if s.config.Metrics != nil {
		s.config.Metrics.CollaborationOpsTotal.WithLabelValues(operation, outcome).Inc()
	}
}
