package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/attendance"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/auth"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/config"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/httpmiddleware"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/metrics"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/queue"
	"github.com/Ishimwe-William/attendance-system-rfid-125khz-based/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func policyFrom(cfg config.App) attendance.Policy {
	return attendance.Policy{
		GraceMinutes:           cfg.GracePeriodMinutes,
		EarlyCheckInMinutes:    cfg.EarlyCheckInMinutes,
		DeviceClockOffsetHours: cfg.DeviceClockOffsetHours,
		Location:               time.Local,
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:checkouts")
	}

	policy := policyFrom(cfg)
	repo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(repo, q, policy)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/devices/register", func(c *gin.Context) {
		var req struct {
			DeviceID   string `json:"device_id" binding:"required"`
			DeviceName string `json:"device_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := svc.RegisterDevice(c.Request.Context(), req.DeviceID, req.DeviceName); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.DeviceID, "device", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = repo.SaveRefreshToken(c.Request.Context(), req.DeviceID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	// Token rotation: the old refresh token is revoked before the new pair
	// is issued, so a leaked token dies on first legitimate rotation.
	r.POST("/v1/devices/token", func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims, err := auth.Parse(req.RefreshToken, cfg.JWTSigningKey, cfg.JWTIssuer)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		device, err := repo.GetDevice(c.Request.Context(), claims.Subject)
		if err != nil || device == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown device"})
			return
		}
		if err := repo.RevokeRefreshToken(c.Request.Context(), req.RefreshToken); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token rotation failed"})
			return
		}
		tokens, err := auth.Issue(device.ID, "device", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		_ = repo.SaveRefreshToken(c.Request.Context(), device.ID, tokens.RefreshToken, tokens.RefreshExp)
		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.DeviceAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// RFID reader ingestion: check-in or check-out scans.
	authGroup.POST("/scans", func(c *gin.Context) {
		var req struct {
			ExamID      string `json:"examId"`
			CurrentExam string `json:"currentExam"` // legacy field name
			DeviceID    string `json:"deviceId" binding:"required"`
			RFIDTag     string `json:"rfidTag" binding:"required"`
			Checkout    bool   `json:"checkout"`
			EpochTime   int64  `json:"epochTime"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		examID := req.ExamID
		if examID == "" {
			examID = req.CurrentExam
		}
		if examID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "examId required"})
			return
		}

		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		if claims.Subject != "" && claims.Subject != req.DeviceID {
			c.JSON(http.StatusForbidden, gin.H{"error": "device mismatch"})
			return
		}

		rec, err := svc.RecordScan(c.Request.Context(), attendance.ScanRequest{
			ExamID:    examID,
			DeviceID:  req.DeviceID,
			RFIDTag:   req.RFIDTag,
			Checkout:  req.Checkout,
			EpochTime: req.EpochTime,
		})
		if err != nil {
			if attendance.IsValidationError(err) {
				metrics.ScansTotal.WithLabelValues("rejected").Inc()
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			metrics.ScansTotal.WithLabelValues("error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.ScansTotal.WithLabelValues("accepted").Inc()
		c.JSON(http.StatusAccepted, recordJSON(policy, nil, rec))
	})

	// Manual attendance entry, validator-gated.
	authGroup.POST("/attendance", func(c *gin.Context) {
		entry, ok := bindManualEntry(c)
		if !ok {
			return
		}
		rec, err := svc.CreateManual(c.Request.Context(), entry)
		if !respondManual(c, "create", rec, err) {
			return
		}
		c.JSON(http.StatusCreated, recordJSON(policy, nil, rec))
	})

	authGroup.PUT("/attendance/:id", func(c *gin.Context) {
		entry, ok := bindManualEntry(c)
		if !ok {
			return
		}
		rec, err := svc.UpdateManual(c.Request.Context(), c.Param("id"), entry)
		if !respondManual(c, "update", rec, err) {
			return
		}
		c.JSON(http.StatusOK, recordJSON(policy, nil, rec))
	})

	authGroup.DELETE("/attendance/:id", func(c *gin.Context) {
		err := svc.DeleteManual(c.Request.Context(), c.Param("id"))
		if !respondManual(c, "delete", nil, err) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	authGroup.GET("/exams", func(c *gin.Context) {
		exams, err := repo.ListExams(c.Request.Context(), 50, 0)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		now := time.Now()
		out := make([]gin.H, 0, len(exams))
		for i := range exams {
			e := &exams[i]
			out = append(out, gin.H{
				"id":         e.ID,
				"courseId":   e.CourseID,
				"examType":   e.ExamType,
				"examDate":   e.ExamDate,
				"startTime":  e.StartTime,
				"endTime":    policy.EndTimeDisplay(e),
				"duration":   e.Duration,
				"room":       e.Room,
				"examStatus": policy.ExamStatusAt(e, now),
			})
		}
		c.JSON(http.StatusOK, gin.H{"exams": out})
	})

	// The exam's ledger with per-row derived status and a summary.
	authGroup.GET("/exams/:id/attendance", func(c *gin.Context) {
		exam, records, summary, err := svc.ExamLedger(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(records))
		for i := range records {
			if exam != nil {
				metrics.ClassificationsTotal.WithLabelValues(policy.Classify(exam, &records[i])).Inc()
			}
			out = append(out, recordJSON(policy, exam, &records[i]))
		}
		resp := gin.H{"records": out, "summary": summary}
		if exam != nil {
			resp["examStatus"] = policy.ExamStatusAt(exam, time.Now())
			resp["endTime"] = policy.EndTimeDisplay(exam)
		}
		c.JSON(http.StatusOK, resp)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func bindManualEntry(c *gin.Context) (attendance.ManualEntry, bool) {
	var req struct {
		ExamID       string `json:"examId"`
		CurrentExam  string `json:"currentExam"` // legacy field name
		StudentID    string `json:"studentId" binding:"required"`
		RFIDTag      string `json:"rfidTag" binding:"required"`
		CheckInTime  string `json:"checkInTime"`
		CheckOutTime string `json:"checkOutTime"`
		Status       string `json:"status"`
		EmailSent    bool   `json:"emailSent"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return attendance.ManualEntry{}, false
	}
	examID := req.ExamID
	if examID == "" {
		examID = req.CurrentExam
	}
	return attendance.ManualEntry{
		ExamID:       examID,
		StudentID:    req.StudentID,
		RFIDTag:      req.RFIDTag,
		CheckInTime:  req.CheckInTime,
		CheckOutTime: req.CheckOutTime,
		Status:       req.Status,
		EmailSent:    req.EmailSent,
	}, true
}

// respondManual maps manual-path outcomes to HTTP, counting them; a
// validation rejection carries its reason verbatim.
func respondManual(c *gin.Context, op string, rec *attendance.Record, err error) bool {
	if err != nil {
		if attendance.IsValidationError(err) {
			metrics.ManualWritesTotal.WithLabelValues(op, "rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			metrics.ManualWritesTotal.WithLabelValues(op, "error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return false
	}
	metrics.ManualWritesTotal.WithLabelValues(op, "ok").Inc()
	return true
}

func recordJSON(policy attendance.Policy, exam *attendance.Exam, rec *attendance.Record) gin.H {
	out := gin.H{
		"id":           rec.ID,
		"examId":       rec.ExamID,
		"studentId":    rec.StudentID,
		"rfidTag":      rec.RFIDTag,
		"checkInTime":  rec.CheckInTime,
		"checkOutTime": rec.CheckOutTime,
		"status":       rec.Status,
		"deviceId":     rec.DeviceID,
		"deviceName":   rec.DeviceName,
		"examRoom":     rec.ExamRoom,
		"emailSent":    rec.EmailSent,
	}
	if rec.CheckInEpoch != 0 {
		out["checkInEpochTime"] = rec.CheckInEpoch
	}
	if rec.CheckOutEpoch != 0 {
		out["checkOutEpochTime"] = rec.CheckOutEpoch
	}
	if rec.EmailError != "" {
		out["emailError"] = rec.EmailError
	}
	if exam != nil {
		out["attendanceStatus"] = policy.Classify(exam, rec)
	}
	return out
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
