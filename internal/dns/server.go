package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/hewenyu/medml-registry/internal/config"
	"github.com/hewenyu/medml-registry/internal/core/model"
)

// server 实现DNS发现服务
type server struct {
	config      *Config
	logger      config.Logger
	udpServer   *dns.Server
	tcpServer   *dns.Server
	cache       *responseCache
	stopCleanup chan struct{}
	shutdownWg  sync.WaitGroup
}

// NewServer 创建一个新的DNS发现服务实例
func NewServer(cfg *Config, logger config.Logger) Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &server{
		config: cfg,
		logger: logger,
		cache:  newResponseCache(),
	}
}

// Start 启动DNS服务器
func (s *server) Start(ctx context.Context) error {
	if s.config.Catalog == nil {
		return fmt.Errorf("未设置服务目录，无法启动DNS服务")
	}

	// 设置DNS处理器
	dnsHandler := dns.NewServeMux()
	dnsHandler.HandleFunc(".", s.handleDNSRequest)

	// 如果启用UDP，启动UDP服务器
	if s.config.EnableUDP {
		s.udpServer = &dns.Server{
			Addr:         s.config.DNSAddr,
			Net:          "udp",
			Handler:      dnsHandler,
			UDPSize:      65535,
			ReadTimeout:  s.config.Timeout,
			WriteTimeout: s.config.Timeout,
		}

		s.shutdownWg.Add(1)
		go func() {
			defer s.shutdownWg.Done()
			s.logger.Info("启动UDP DNS服务器", zap.String("addr", s.config.DNSAddr))
			if err := s.udpServer.ListenAndServe(); err != nil {
				s.logger.Error("UDP DNS服务器异常退出", zap.Error(err))
			}
		}()
	}

	// 如果启用TCP，启动TCP服务器
	if s.config.EnableTCP {
		s.tcpServer = &dns.Server{
			Addr:         s.config.DNSAddr,
			Net:          "tcp",
			Handler:      dnsHandler,
			ReadTimeout:  s.config.Timeout,
			WriteTimeout: s.config.Timeout,
		}

		s.shutdownWg.Add(1)
		go func() {
			defer s.shutdownWg.Done()
			s.logger.Info("启动TCP DNS服务器", zap.String("addr", s.config.DNSAddr))
			if err := s.tcpServer.ListenAndServe(); err != nil {
				s.logger.Error("TCP DNS服务器异常退出", zap.Error(err))
			}
		}()
	}

	// 配置了上游DNS时启动缓存清理协程
	if len(s.config.UpstreamDNS) > 0 {
		s.stopCleanup = make(chan struct{})
		s.shutdownWg.Add(1)
		go func() {
			defer s.shutdownWg.Done()
			s.cache.run(time.Minute, s.stopCleanup)
		}()
	}

	return nil
}

// Stop 停止DNS服务器
func (s *server) Stop() error {
	var errs []error

	// 停止缓存清理协程
	if s.stopCleanup != nil {
		close(s.stopCleanup)
		s.stopCleanup = nil
	}

	// 关闭UDP服务器
	if s.udpServer != nil {
		if err := s.udpServer.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("关闭UDP服务器失败: %w", err))
		}
	}

	// 关闭TCP服务器
	if s.tcpServer != nil {
		if err := s.tcpServer.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("关闭TCP服务器失败: %w", err))
		}
	}

	// 等待所有服务器关闭
	s.shutdownWg.Wait()

	if len(errs) > 0 {
		return fmt.Errorf("停止DNS服务器时发生错误: %v", errs)
	}

	return nil
}

// handleDNSRequest 处理DNS请求
func (s *server) handleDNSRequest(w dns.ResponseWriter, r *dns.Msg) {
	// 创建响应消息
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	// 记录查询中是否出现了本服务域内的域名
	inZone := false

	// 处理查询请求
	for _, q := range r.Question {
		s.logger.Debug("收到DNS查询请求",
			zap.String("name", q.Name),
			zap.String("type", dns.TypeToString[q.Qtype]))

		// 解析服务标识
		serviceKey, ok := s.parseServiceDomain(q.Name)
		if !ok {
			continue
		}
		inZone = true

		switch q.Qtype {
		case dns.TypeA:
			m = s.handleAddressLookup(m, q, serviceKey)
		case dns.TypeSRV:
			m = s.handleSRVRecordLookup(m, q, serviceKey)
		}
	}

	// 域内查询无结果时返回NXDOMAIN，不转发以免泄露内部域名；
	// 域外查询在配置了上游DNS时转发，命中缓存则直接应答
	if len(m.Answer) == 0 {
		if inZone {
			if m.Rcode == dns.RcodeSuccess {
				m.Rcode = dns.RcodeNameError
			}
		} else if len(s.config.UpstreamDNS) > 0 {
			if cached := s.cache.lookup(r); cached != nil {
				m = cached
			} else if resp, err := s.forwardToUpstream(r); err != nil {
				s.logger.Warn("转发到上游DNS失败", zap.Error(err))
				m.Rcode = dns.RcodeServerFailure
			} else {
				*m = *resp
				s.cache.store(r, resp)
			}
		} else {
			m.Rcode = dns.RcodeNameError
		}
	}

	// 发送响应
	if err := w.WriteMsg(m); err != nil {
		s.logger.Error("发送DNS响应失败", zap.Error(err))
	}
}

// parseServiceDomain 解析服务域名
// 格式: <service_id或service_name>.<domain>
func (s *server) parseServiceDomain(name string) (string, bool) {
	// 移除末尾的点号，DNS查询不区分大小写
	name = strings.TrimSuffix(name, ".")
	domain := strings.ToLower(s.config.Domain)
	lower := strings.ToLower(name)

	if lower == domain {
		return "", false
	}
	if !strings.HasSuffix(lower, "."+domain) {
		return "", false
	}

	// 移除域名后缀，保留前缀作为服务标识
	key := name[:len(name)-len(domain)-1]
	if key == "" {
		return "", false
	}
	return key, true
}

// resolveRecords 按service_id查询，未命中时回退到按service_name匹配
func (s *server) resolveRecords(ctx context.Context, serviceKey string) ([]*model.ServiceRecord, error) {
	record, err := s.config.Catalog.Get(ctx, serviceKey)
	if err == nil {
		return []*model.ServiceRecord{record}, nil
	}

	var regErr *model.RegistryError
	if !errors.As(err, &regErr) || regErr.Code != model.ErrNotFound {
		return nil, err
	}

	all, err := s.config.Catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*model.ServiceRecord
	for _, r := range all {
		if strings.EqualFold(r.ServiceName, serviceKey) {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// recordHost 解析服务记录base_url的主机名
func recordHost(record *model.ServiceRecord) string {
	u, err := url.Parse(record.BaseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// recordPort 解析服务对外端口，优先使用base_url中的端口
func recordPort(record *model.ServiceRecord) uint16 {
	u, err := url.Parse(record.BaseURL)
	if err == nil && u.Port() != "" {
		if port, convErr := strconv.Atoi(u.Port()); convErr == nil && port > 0 && port <= 65535 {
			return uint16(port)
		}
	}
	if record.Port > 0 && record.Port <= 65535 {
		return uint16(record.Port)
	}
	if u != nil && u.Scheme == "https" {
		return 443
	}
	return 80
}

// handleAddressLookup 处理A记录查询：
// base_url主机为IPv4字面量时返回A记录，为主机名时返回CNAME记录
func (s *server) handleAddressLookup(m *dns.Msg, q dns.Question, serviceKey string) *dns.Msg {
	ctx := context.Background()

	records, err := s.resolveRecords(ctx, serviceKey)
	if err != nil {
		s.logger.Warn("查询服务失败", zap.String("service", serviceKey), zap.Error(err))
		m.Rcode = dns.RcodeServerFailure
		return m
	}

	for _, record := range records {
		host := recordHost(record)
		if host == "" {
			continue
		}

		if ip := net.ParseIP(host); ip != nil {
			ipv4 := ip.To4()
			if ipv4 == nil {
				continue
			}
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{
					Name:   q.Name,
					Rrtype: dns.TypeA,
					Class:  dns.ClassINET,
					Ttl:    s.config.TTL,
				},
				A: ipv4,
			})
			s.logger.Debug("返回A记录", zap.String("service", serviceKey), zap.String("ip", host))
		} else {
			m.Answer = append(m.Answer, &dns.CNAME{
				Hdr: dns.RR_Header{
					Name:   q.Name,
					Rrtype: dns.TypeCNAME,
					Class:  dns.ClassINET,
					Ttl:    s.config.TTL,
				},
				Target: dns.Fqdn(host),
			})
			s.logger.Debug("返回CNAME记录", zap.String("service", serviceKey), zap.String("target", host))
		}
	}

	return m
}

// handleSRVRecordLookup 处理SRV记录查询，返回服务端口和目标主机
func (s *server) handleSRVRecordLookup(m *dns.Msg, q dns.Question, serviceKey string) *dns.Msg {
	ctx := context.Background()

	records, err := s.resolveRecords(ctx, serviceKey)
	if err != nil {
		s.logger.Warn("查询服务失败", zap.String("service", serviceKey), zap.Error(err))
		m.Rcode = dns.RcodeServerFailure
		return m
	}

	for _, record := range records {
		host := recordHost(record)
		if host == "" {
			continue
		}

		port := recordPort(record)
		target := dns.Fqdn(host)

		// SRV记录优先级0为最高，权重0表示不参与权重负载均衡
		m.Answer = append(m.Answer, &dns.SRV{
			Hdr: dns.RR_Header{
				Name:   q.Name,
				Rrtype: dns.TypeSRV,
				Class:  dns.ClassINET,
				Ttl:    s.config.TTL,
			},
			Priority: 0,
			Weight:   0,
			Port:     port,
			Target:   target,
		})

		// 目标为IPv4字面量时附带A记录，便于客户端直接解析
		if ip := net.ParseIP(host); ip != nil {
			if ipv4 := ip.To4(); ipv4 != nil {
				m.Extra = append(m.Extra, &dns.A{
					Hdr: dns.RR_Header{
						Name:   target,
						Rrtype: dns.TypeA,
						Class:  dns.ClassINET,
						Ttl:    s.config.TTL,
					},
					A: ipv4,
				})
			}
		}

		s.logger.Debug("返回SRV记录",
			zap.String("service", serviceKey),
			zap.String("target", host),
			zap.Uint16("port", port))
	}

	return m
}

// forwardToUpstream 将DNS请求转发到上游DNS服务器
func (s *server) forwardToUpstream(r *dns.Msg) (*dns.Msg, error) {
	// 创建一个新的DNS客户端
	c := new(dns.Client)
	c.Timeout = s.config.Timeout

	// 尝试每个上游DNS服务器，直到成功或全部失败
	var lastErr error
	for _, upstreamAddr := range s.config.UpstreamDNS {
		resp, _, err := c.Exchange(r, upstreamAddr)
		if err != nil {
			s.logger.Warn("上游DNS服务器请求失败",
				zap.String("upstream", upstreamAddr),
				zap.Error(err))
			lastErr = err
			continue
		}

		// 如果响应是截断的(TC=1)，尝试使用TCP重新查询
		if resp.Truncated {
			c.Net = "tcp"
			resp, _, err = c.Exchange(r, upstreamAddr)
			if err != nil {
				s.logger.Warn("上游DNS服务器TCP请求失败",
					zap.String("upstream", upstreamAddr),
					zap.Error(err))
				lastErr = err
				continue
			}
		}

		return resp, nil
	}

	// 所有上游DNS服务器都失败了
	return nil, fmt.Errorf("所有上游DNS服务器都失败: %v", lastErr)
}
