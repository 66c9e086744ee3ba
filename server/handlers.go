package server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ChristianF88/searchviz/analysis"
	"github.com/ChristianF88/searchviz/ingestor"
	"github.com/ChristianF88/searchviz/output"
	"github.com/ChristianF88/searchviz/variable"
)

const (
	defaultTreeDepth = 3
	maxTreeDepth     = 64
)

// ErrorResponse is returned with every non 2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TreeNode is one node of a depth limited tree response.
type TreeNode struct {
	ID          int64       `json:"id"`
	SelectionID int64       `json:"selection_id"`
	Label       string      `json:"label"`
	Status      string      `json:"status"`
	VisID       int         `json:"vis_id"`
	RestartID   int         `json:"restart_id"`
	ChildCount  int         `json:"child_count"`
	Children    []*TreeNode `json:"children,omitempty"`
}

// TreeResponse is the body of GET /api/tree.
type TreeResponse struct {
	Session string      `json:"session"`
	Depth   int         `json:"depth"`
	Roots   []*TreeNode `json:"roots"`
}

// NodeResponse is the body of GET /api/nodes/:id. Measurements that were
// never recorded are null.
type NodeResponse struct {
	ID            int64          `json:"id"`
	SelectionID   int64          `json:"selection_id"`
	ParentID      int64          `json:"parent_id"`
	Status        string         `json:"status"`
	Alternative   int64          `json:"alternative"`
	DecisionLevel *float64       `json:"decision_level"`
	Depth         *float64       `json:"depth"`
	Label         string         `json:"label"`
	Var           variable.Ref   `json:"var"`
	Timestamp     *float64       `json:"timestamp"`
	TimeTaken     *float64       `json:"time_taken"`
	ObjMin        *float64       `json:"obj_min"`
	ObjRange      *float64       `json:"obj_range"`
	NogoodLength  *float64       `json:"nogood_length"`
	Backjump      *float64       `json:"backjump_distance"`
	RestartID     int            `json:"restart_id"`
	RestartCount  int            `json:"restart_count"`
	VisID         int            `json:"vis_id"`
	Root          bool           `json:"root"`
	Reparented    bool           `json:"reparented"`
	Children      []int64        `json:"children"`
	Uses          []int64        `json:"uses_nogoods"`
	UsedBy        []int64        `json:"used_by"`
	Solution      map[string]any `json:"solution,omitempty"`
	Description   string         `json:"description"`
}

// SelectRequest names the nodes to select. Exactly one field is expected.
type SelectRequest struct {
	ID       *int64  `json:"id"`
	IDs      []int64 `json:"ids"`
	Group    string  `json:"group"`
	Variable string  `json:"variable"`
	Restart  *int    `json:"restart"`
}

// SelectResponse reports how many ids were sent to the host.
type SelectResponse struct {
	Selected int `json:"selected"`
}

func num(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// current returns the session or answers 503 when none is built yet.
func (s *Server) current(c *gin.Context) (*analysis.Session, *output.JSONOutput, bool) {
	session, result := s.Session()
	if session == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no session loaded"})
		return nil, nil, false
	}
	return session, result, true
}

func (s *Server) HandleHealth(c *gin.Context) {
	session, _ := s.Session()
	id := ""
	if session != nil {
		id = session.ID
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "session": id})
}

func (s *Server) HandleSession(c *gin.Context) {
	_, result, ok := s.current(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, result)
}

func treeNode(rec *ingestor.Record, depth int) *TreeNode {
	n := &TreeNode{
		ID:          rec.ID,
		SelectionID: rec.SelectionID(),
		Label:       rec.Label,
		Status:      rec.Status.String(),
		VisID:       rec.VisID,
		RestartID:   rec.RestartID,
		ChildCount:  len(rec.Children),
	}
	if depth > 0 {
		for _, child := range rec.Children {
			n.Children = append(n.Children, treeNode(child, depth-1))
		}
	}
	return n
}

func (s *Server) HandleTree(c *gin.Context) {
	session, _, ok := s.current(c)
	if !ok {
		return
	}

	depth := defaultTreeDepth
	if v := c.Query("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "depth must be a non-negative integer"})
			return
		}
		depth = min(d, maxTreeDepth)
	}

	roots := session.Forest.Roots
	if v := c.Query("root"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "root must be a node id"})
			return
		}
		rec, found := session.Forest.Lookup(id)
		if !found {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "node not found"})
			return
		}
		roots = []*ingestor.Record{rec}
	}

	resp := TreeResponse{Session: session.ID, Depth: depth, Roots: make([]*TreeNode, 0, len(roots))}
	for _, root := range roots {
		resp.Roots = append(resp.Roots, treeNode(root, depth))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) HandleNode(c *gin.Context) {
	session, _, ok := s.current(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "id must be an integer"})
		return
	}
	rec, found := session.Forest.Lookup(id)
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "node not found"})
		return
	}

	uses, usedBy := session.Forest.NogoodLinks(id)
	resp := NodeResponse{
		ID:            rec.ID,
		SelectionID:   rec.SelectionID(),
		ParentID:      rec.ParentID,
		Status:        rec.Status.String(),
		Alternative:   rec.Alternative,
		DecisionLevel: num(rec.DecisionLevel),
		Depth:         num(rec.Depth),
		Label:         rec.Label,
		Var:           rec.Var,
		Timestamp:     num(rec.Timestamp),
		TimeTaken:     num(rec.TimeTaken),
		NogoodLength:  num(rec.NogoodLength),
		Backjump:      num(rec.BackjumpDistance),
		RestartID:     rec.RestartID,
		RestartCount:  rec.RestartCount,
		VisID:         rec.VisID,
		Root:          rec.Root,
		Reparented:    rec.Reparented,
		Children:      make([]int64, 0, len(rec.Children)),
		Uses:          uses,
		UsedBy:        usedBy,
		Description:   analysis.Describe(rec),
	}
	if rec.ObjDomain != nil {
		resp.ObjMin = num(rec.ObjDomain.Min)
		resp.ObjRange = num(rec.ObjDomain.Range)
	}
	if rec.Solution != nil {
		resp.Solution = rec.Solution.Fields
	}
	for _, child := range rec.Children {
		resp.Children = append(resp.Children, child.ID)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) HandleAggregates(c *gin.Context) {
	session, _, ok := s.current(c)
	if !ok {
		return
	}

	g := analysis.Grouping{Key: c.Query("key"), SecondKey: c.Query("second")}
	if g.Key == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "key is required"})
		return
	}
	g.LeftOnly = g.SecondKey == ""
	if v := c.Query("leftOnly"); v != "" {
		leftOnly, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "leftOnly must be a boolean"})
			return
		}
		g.LeftOnly = leftOnly
	}

	view := analysis.View{Name: "adhoc"}
	var err error
	if g.SecondKey != "" {
		view.Cross, err = session.AggregateCross(g)
	} else {
		view.Table, err = session.Aggregate(g)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis.ViewOutput(view))
}

func (s *Server) HandleTimeline(c *gin.Context) {
	session, _, ok := s.current(c)
	if !ok {
		return
	}
	v := c.Query("percent")
	if v == "" {
		c.JSON(http.StatusOK, analysis.TimelineOutput(session.Timeline, session.TimelinePercent))
		return
	}
	percent, err := strconv.ParseFloat(v, 64)
	if err != nil || !(percent > 0 && percent <= 100) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "percent must be in (0, 100]"})
		return
	}
	buckets := analysis.Timeline(session.Records, session.Totals, percent)
	c.JSON(http.StatusOK, analysis.TimelineOutput(buckets, percent))
}

func (s *Server) HandleGrid(c *gin.Context) {
	session, _, ok := s.current(c)
	if !ok {
		return
	}
	restart, err := analysis.ParseRestart(c.Query("restart"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	grid, err := session.Grid(c.Param("group"), restart)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis.GridOutput(grid))
}

func (s *Server) HandleSelect(c *gin.Context) {
	session, _, ok := s.current(c)
	if !ok {
		return
	}
	if s.sink == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no selection sink configured"})
		return
	}

	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	var err error
	selected := 0
	switch {
	case req.ID != nil:
		rec, found := session.Forest.Lookup(*req.ID)
		if !found {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "node not found"})
			return
		}
		err = s.sink.NotifySelection(rec.SelectionID())
		selected = 1
	case req.IDs != nil:
		err = s.sink.NotifySelectionMany(req.IDs)
		selected = len(req.IDs)
	case req.Group != "":
		ids := session.GroupSelection(req.Group)
		err = s.sink.NotifySelectionMany(ids)
		selected = len(ids)
	case req.Variable != "":
		ids := session.VariableSelection(req.Variable)
		err = s.sink.NotifySelectionMany(ids)
		selected = len(ids)
	case req.Restart != nil:
		ids := session.RestartSelection(*req.Restart)
		err = s.sink.NotifySelectionMany(ids)
		selected = len(ids)
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "one of id, ids, group, variable or restart is required"})
		return
	}
	if err != nil {
		s.logger.Error("selection not delivered", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SelectResponse{Selected: selected})
}

func (s *Server) HandleCharts(c *gin.Context) {
	session, result, ok := s.current(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := output.RenderCharts(c.Writer, result, session.Forest); err != nil {
		s.logger.Error("rendering charts failed", "error", err)
	}
}
