// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package tgt serves the target manager REST API
package tgt

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/handler"
	"github.com/hpe-storage/tgt-manager/util"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// NewRouter creates a new mux.Router serving every endpoint of m
func NewRouter(m handler.Manager) *mux.Router {
	handler.SetManager(m)

	routes := []util.Route{
		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/targets
		// Description: 	This endpoint returns every target read from tgtd.
		// Input Object:	None
		// Output Object:	Array of model.Target objects
		// Sample Output:
		// {
		//     "success": true,
		//     "data": [
		//         {
		//             "tid": 1,
		//             "name": "iqn.2025-01.com.example:disk1",
		//             "luns": [
		//                 {
		//                     "lun_id": 1,
		//                     "type": "disk",
		//                     "size": "10.00 GB",
		//                     "backing_store": "/app/iscsi/disk1.img",
		//                     "status": "online"
		//                 }
		//             ],
		//             "acl_list": ["ALL"],
		//             "nexus_information": [],
		//             "acl_mode": "allow-all"
		//         }
		//     ]
		// }
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "Targets",
			Method:      "GET",
			Pattern:     "/api/targets",
			HandlerFunc: handler.GetTargets,
		},
		util.Route{
			Name:        "RefreshTargets",
			Method:      "POST",
			Pattern:     "/refresh_targets",
			HandlerFunc: handler.RefreshTargets,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		POST /target/create
		// Description: 	Creates a target and applies its ACL.
		// Input Object:	form tid, target_name, acl_mode (whitelist|allow-all), initiator_address
		// Output Object:	model.Target
		// Sample Output (ACL step failed):
		// {
		//     "success": false,
		//     "message": "target iqn.x created, ACL configuration failed: tgtadm: ...",
		//     "error": "tgtadm: ...",
		//     "error_code": "PARTIAL_FAILURE",
		//     "details": {"step": "bind_acl", "initiator": "iqn.b", "command": {...}}
		// }
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "CreateTarget",
			Method:      "POST",
			Pattern:     "/target/create",
			HandlerFunc: handler.CreateTarget,
		},
		util.Route{
			Name:        "DeleteTarget",
			Method:      "POST",
			Pattern:     "/target/delete/{tid}",
			HandlerFunc: handler.DeleteTarget,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		POST /target/update_id
		// Description: 	Moves a target to a new ID: create, copy LUNs, copy ACL, delete old.
		// Input Object:	form old_tid, new_tid
		// Output Object:	model.ResourceRef, or model.StepFailure in details on failure
		// Sample Output (LUN copy failed):
		// {
		//     "success": false,
		//     "error_code": "PARTIAL_FAILURE",
		//     "details": {"step": "copy_lun", "lun_id": 2, "command": {...}}
		// }
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "UpdateTargetID",
			Method:      "POST",
			Pattern:     "/target/update_id",
			HandlerFunc: handler.UpdateTargetID,
		},
		util.Route{
			Name:        "GetTargetACL",
			Method:      "GET",
			Pattern:     "/target/get_acl/{tid}",
			HandlerFunc: handler.GetTargetACL,
		},
		util.Route{
			Name:        "ClearTargetACL",
			Method:      "POST",
			Pattern:     "/target/clear_acl",
			HandlerFunc: handler.ClearTargetACL,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		POST /target/acl
		// Description: 	Reconciles the ACL of a target.
		// Input Object:	form tid, action (bind|unbind|all), initiator_address (comma separated)
		// Output Object:	model.AclReport
		// Sample Output:
		// {
		//     "success": true,
		//     "message": "bind partially applied (1/2)",
		//     "data": {
		//         "tid": 1,
		//         "action": "bind",
		//         "initiator_address": ["iqn.a", "iqn.b"],
		//         "failed_initiators": [{"initiator": "iqn.b", "error": "tgtadm: ..."}]
		//     }
		// }
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "SetTargetACL",
			Method:      "POST",
			Pattern:     "/target/acl",
			HandlerFunc: handler.SetTargetACL,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoints:  		POST /lun/create, /lun/delete, /lun/update_id, /lun/rebind
		// Input Object:	form tid, lun_id, backing_store, old_lun_id, new_lun_id, new_tid
		// Output Object:	model.ResourceRef
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "CreateLun",
			Method:      "POST",
			Pattern:     "/lun/create",
			HandlerFunc: handler.CreateLun,
		},
		util.Route{
			Name:        "DeleteLun",
			Method:      "POST",
			Pattern:     "/lun/delete",
			HandlerFunc: handler.DeleteLun,
		},
		util.Route{
			Name:        "UpdateLunID",
			Method:      "POST",
			Pattern:     "/lun/update_id",
			HandlerFunc: handler.UpdateLunID,
		},
		util.Route{
			Name:        "RebindLun",
			Method:      "POST",
			Pattern:     "/lun/rebind",
			HandlerFunc: handler.RebindLun,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/status
		// Description: 	Reports tgtd liveness and object counts.
		// Output Object:	model.Status
		// Sample Output:
		// {
		//     "success": true,
		//     "data": {
		//         "tgt_running": true,
		//         "target_count": 2,
		//         "lun_count": 3,
		//         "session_count": 1,
		//         "disk_count": 4,
		//         "durable_free_bytes": 52613349376,
		//         "default_iqns": {"default": "iqn.2025-01.com.example"}
		//     }
		// }
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "Status",
			Method:      "GET",
			Pattern:     "/api/status",
			HandlerFunc: handler.GetStatus,
		},
		util.Route{
			Name:        "Sessions",
			Method:      "GET",
			Pattern:     "/api/sessions",
			HandlerFunc: handler.GetSessions,
		},
		util.Route{
			Name:        "TgtadmOutput",
			Method:      "GET",
			Pattern:     "/api/tgtadm",
			HandlerFunc: handler.GetTgtadmOutput,
		},
		util.Route{
			Name:        "Disks",
			Method:      "GET",
			Pattern:     "/api/disks",
			HandlerFunc: handler.GetDisks,
		},
		util.Route{
			Name:        "DiskMethod",
			Method:      "POST",
			Pattern:     "/disk/method",
			HandlerFunc: handler.RecordDiskMethod,
		},

		///////////////////////////////////////////////////////////////////////////////////////////
		// Endpoint:  		GET /api/performance
		// Description: 	Returns the results file of the LUN performance monitor as written.
		// Output Object:	model.Performance
		// Sample Output:
		// {
		//     "success": true,
		//     "data": {
		//         "running": true,
		//         "updated_at": "2025-05-20T10:42:13Z",
		//         "samples": {"luns": [{"tid": 1, "lun": 1, "read_iops": 1200}]}
		//     }
		// }
		// Sample Output (never started, HTTP 409):
		// {
		//     "success": false,
		//     "error": "performance monitoring has not been started",
		//     "error_code": "MONITOR_NOT_RUNNING"
		// }
		///////////////////////////////////////////////////////////////////////////////////////////
		util.Route{
			Name:        "Performance",
			Method:      "GET",
			Pattern:     "/api/performance",
			HandlerFunc: handler.GetPerformance,
		},
		util.Route{
			Name:        "StartPerformanceMonitor",
			Method:      "POST",
			Pattern:     "/api/performance/start",
			HandlerFunc: handler.StartPerformanceMonitor,
		},
		util.Route{
			Name:        "StopPerformanceMonitor",
			Method:      "POST",
			Pattern:     "/api/performance/stop",
			HandlerFunc: handler.StopPerformanceMonitor,
		},
		util.Route{
			Name:        "Optimize",
			Method:      "POST",
			Pattern:     "/optimize",
			HandlerFunc: handler.Optimize,
		},
		util.Route{
			Name:        "Metrics",
			Method:      "GET",
			Pattern:     "/metrics",
			HandlerFunc: promhttp.Handler().ServeHTTP,
		},
	}

	router := mux.NewRouter().StrictSlash(true)
	util.InitializeRouter(router, routes)
	return router
}

// Server serves the REST API until Stop is called
type Server struct {
	lock     sync.Mutex
	server   *http.Server
	listener net.Listener
}

// Start listens on address and serves m in the background
func (s *Server) Start(address string, m handler.Manager) error {
	log.Infof(">>>>> Start, address=%v", address)
	defer log.Info("<<<<< Start")

	s.lock.Lock()
	defer s.lock.Unlock()

	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.Errorf("listen error, unable to serve on %s, err=%v", address, err)
		return err
	}
	s.listener = listener
	s.server = &http.Server{Handler: NewRouter(m)}
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Errorf("exiting tgt-manager server, err=%v", err)
		}
	}()
	return nil
}

// Addr returns the address the server listens on, nil before Start
func (s *Server) Addr() net.Addr {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down, waiting for in-flight requests
func (s *Server) Stop() error {
	log.Info(">>>>> Stop")
	defer log.Info("<<<<< Stop")

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}
