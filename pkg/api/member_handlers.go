package api

import (
	"net/http"

	"github.com/platinummonkey/basekeeper/pkg/httputil"
	"github.com/platinummonkey/basekeeper/pkg/members"
)

// getAdmission reports whether the tenant may enroll another member
func (s *Server) getAdmission(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	admission, err := s.admission.CanAddMember(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, admission)
}

// admitMember enrolls a member if the tenant's subscription allows it.
// A refusal answers 402 with the admission decision in the details.
func (s *Server) admitMember(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := httputil.ParsePathStringOrError(w, r, "tenant_id")
	if !ok {
		return
	}

	var req AdmitMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	member := &members.Member{
		TenantID: tenantID,
		Name:     req.Name,
		Email:    req.Email,
		Status:   req.Status,
	}
	admission, err := s.admission.AdmitMember(r.Context(), member)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httputil.WriteCreated(w, AdmitMemberResponse{Member: member, Admission: admission})
}
