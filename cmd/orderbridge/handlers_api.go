package main

import (
	"context"
	"net/http"
	"time"

	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/models"
	"orderbridge/internal/service"
	"orderbridge/internal/tracing"
	"orderbridge/internal/validation"

	"github.com/sirupsen/logrus"
)

// createHandler decodes and validates a request body, stores it and answers 201
func createHandler[In any, Out any](s *Server, create func(context.Context, In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := decodeJSON(w, r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validation.Struct(in); err != nil {
			s.writeError(w, r, err)
			return
		}

		out, err := create(r.Context(), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func getHandler[Out any](s *Server, get func(context.Context, int64) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		out, err := get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listHandler[Out any](s *Server, list func(context.Context) ([]Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := list(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if out == nil {
			out = []Out{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func deleteHandler(s *Server, remove func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := remove(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Orders

func (s *Server) handleCreateOrder() http.HandlerFunc {
	return createHandler(s, func(ctx context.Context, in models.NewOrder) (*models.Order, error) {
		order, err := s.deps.Database.CreateOrder(ctx, in)
		if err != nil {
			return nil, err
		}
		s.deps.Registry.IncrementCounter("orders_created_total", nil, "Orders created")
		return order, nil
	})
}

func (s *Server) handleListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := models.OrderStatus(r.URL.Query().Get("status"))
		if status != "" && !status.Valid() {
			s.writeError(w, r, apperrors.NewValidationError("status", "unknown order status"))
			return
		}

		listHandler(s, func(ctx context.Context) ([]*models.Order, error) {
			return s.deps.Database.ListOrders(ctx, status)
		})(w, r)
	}
}

func (s *Server) handleGetOrder() http.HandlerFunc {
	return getHandler(s, s.deps.Database.GetOrder)
}

func (s *Server) handleUpdateOrderStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req models.StatusUpdate
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validation.Struct(req); err != nil {
			s.writeError(w, r, err)
			return
		}

		order, err := s.deps.Orders.UpdateStatus(r.Context(), id, models.OrderStatus(req.Status))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

func (s *Server) handleDeleteOrder() http.HandlerFunc {
	return deleteHandler(s, s.deps.Database.DeleteOrder)
}

// Conversations

func (s *Server) handleListMessages() http.HandlerFunc {
	return getHandler(s, func(ctx context.Context, orderID int64) ([]*models.Message, error) {
		if _, err := s.deps.Database.GetOrder(ctx, orderID); err != nil {
			return nil, err
		}
		messages, err := s.deps.Database.ListMessagesByOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if messages == nil {
			messages = []*models.Message{}
		}
		return messages, nil
	})
}

func (s *Server) handleCreateMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathID(r, "id")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req models.NewMessage
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validation.Struct(req); err != nil {
			s.writeError(w, r, err)
			return
		}

		if _, err := s.deps.Database.GetOrder(r.Context(), orderID); err != nil {
			s.writeError(w, r, err)
			return
		}

		msg := &models.Message{
			OrderID:    orderID,
			Content:    req.Content,
			SenderType: models.SenderType(req.SenderType),
		}
		if req.MediaID != "" {
			mediaID := req.MediaID
			msg.MediaID = &mediaID
		}

		stored, err := s.deps.Messages.Create(r.Context(), msg)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, stored)
	}
}

// handleMessageFeed upgrades to a websocket that receives the order's new
// messages as they are stored.
func (s *Server) handleMessageFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathID(r, "id")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if _, err := s.deps.Database.GetOrder(r.Context(), orderID); err != nil {
			s.writeError(w, r, err)
			return
		}

		// The server write timeout would otherwise close long-lived feeds
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		if err := s.deps.Hub.ServeOrder(w, r, orderID, s.cfg.Server.AllowedOrigins); err != nil {
			s.logger.WithFields(logrus.Fields{
				"request_id": tracing.GetRequestID(r.Context()),
				"order_id":   orderID,
			}).WithError(err).Warn("Realtime feed ended with error")
		}
	}
}

// Messages

func (s *Server) handleGetMessage() http.HandlerFunc {
	return getHandler(s, s.deps.Database.GetMessage)
}

func (s *Server) handleForwardMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messageID, err := pathID(r, "id")
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req models.ForwardMessage
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := validation.Struct(req); err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.deps.Forwarding.Forward(r.Context(), service.ForwardRequest{
			MessageID:     messageID,
			TargetOrderID: req.TargetOrderID,
			Recipient:     req.Recipient,
			SenderType:    models.SenderType(req.SenderType),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

// People

func (s *Server) handleCreateClient() http.HandlerFunc {
	return createHandler(s, func(ctx context.Context, in models.NewClient) (*models.Client, error) {
		return s.deps.Database.CreateClient(ctx, &models.Client{Name: in.Name, Phone: in.Phone, Email: in.Email})
	})
}

func (s *Server) handleListClients() http.HandlerFunc {
	return listHandler(s, s.deps.Database.ListClients)
}

func (s *Server) handleGetClient() http.HandlerFunc {
	return getHandler(s, s.deps.Database.GetClient)
}

func (s *Server) handleDeleteClient() http.HandlerFunc {
	return deleteHandler(s, s.deps.Database.DeleteClient)
}

func (s *Server) handleCreateWorker() http.HandlerFunc {
	return createHandler(s, func(ctx context.Context, in models.NewWorker) (*models.Worker, error) {
		return s.deps.Database.CreateWorker(ctx, &models.Worker{Code: in.Code, Name: in.Name, Phone: in.Phone})
	})
}

func (s *Server) handleListWorkers() http.HandlerFunc {
	return listHandler(s, s.deps.Database.ListWorkers)
}

func (s *Server) handleGetWorker() http.HandlerFunc {
	return getHandler(s, s.deps.Database.GetWorker)
}

func (s *Server) handleDeleteWorker() http.HandlerFunc {
	return deleteHandler(s, s.deps.Database.DeleteWorker)
}

func (s *Server) handleCreateEmployee() http.HandlerFunc {
	return createHandler(s, func(ctx context.Context, in models.NewEmployee) (*models.Employee, error) {
		return s.deps.Database.CreateEmployee(ctx, &models.Employee{Code: in.Code, Name: in.Name, Phone: in.Phone})
	})
}

func (s *Server) handleListEmployees() http.HandlerFunc {
	return listHandler(s, s.deps.Database.ListEmployees)
}

func (s *Server) handleGetEmployee() http.HandlerFunc {
	return getHandler(s, s.deps.Database.GetEmployee)
}

func (s *Server) handleDeleteEmployee() http.HandlerFunc {
	return deleteHandler(s, s.deps.Database.DeleteEmployee)
}
